package backoff

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Defaults applied to unset fields of a RetryParameters block.
const (
	DefaultMinBackoffSec = 0.1
	DefaultMaxBackoffSec = 3600.0
	DefaultMaxDoublings  = 16
)

// maxExponent keeps 2^exponent inside the float64 range.
const maxExponent = 1023

// RetryParameters bounds how often and for how long a failing push task is
// retried, and shapes the delay curve between attempts.
//
// RetryLimit and AgeLimitSec are optional; nil means unbounded.
type RetryParameters struct {
	RetryLimit    *int    `json:"retry_limit,omitempty"`
	AgeLimitSec   *int64  `json:"age_limit_sec,omitempty"`
	MinBackoffSec float64 `json:"min_backoff_sec"`
	MaxBackoffSec float64 `json:"max_backoff_sec"`
	MaxDoublings  int     `json:"max_doublings"`
}

// NewRetryParameters returns parameters with the default backoff curve and
// no retry bounds.
func NewRetryParameters() *RetryParameters {
	return &RetryParameters{
		MinBackoffSec: DefaultMinBackoffSec,
		MaxBackoffSec: DefaultMaxBackoffSec,
		MaxDoublings:  DefaultMaxDoublings,
	}
}

// UnmarshalJSON decodes a retry_parameters block. Fields the block leaves
// out keep the defaults of NewRetryParameters.
func (p *RetryParameters) UnmarshalJSON(data []byte) error {
	type plain RetryParameters
	v := plain(*NewRetryParameters())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = RetryParameters(v)
	return nil
}

// WithDefaults returns a copy of p with an unset backoff curve filled in.
// Zero backoff bounds on both ends mean the curve was never set and take
// the default curve; a zero MaxBackoffSec alone takes the default cap.
func (p *RetryParameters) WithDefaults() *RetryParameters {
	if p == nil {
		return nil
	}
	cp := p.Clone()
	if cp.MinBackoffSec == 0 && cp.MaxBackoffSec == 0 {
		cp.MinBackoffSec = DefaultMinBackoffSec
		if cp.MaxDoublings == 0 {
			cp.MaxDoublings = DefaultMaxDoublings
		}
	}
	if cp.MaxBackoffSec == 0 {
		cp.MaxBackoffSec = max(DefaultMaxBackoffSec, cp.MinBackoffSec)
	}
	return cp
}

// Validate reports every bound of p that is out of range.
func (p *RetryParameters) Validate() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.MinBackoffSec < 0 || p.MaxBackoffSec < p.MinBackoffSec {
		errs = append(errs, errors.New("backoff bounds must satisfy 0 <= min <= max"))
	}
	if p.MaxDoublings < 0 {
		errs = append(errs, errors.New("max doublings must not be negative"))
	}
	if p.RetryLimit != nil && *p.RetryLimit < 0 {
		errs = append(errs, errors.New("retry limit must not be negative"))
	}
	if p.AgeLimitSec != nil && *p.AgeLimitSec < 0 {
		errs = append(errs, errors.New("age limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of p.
func (p *RetryParameters) Clone() *RetryParameters {
	if p == nil {
		return nil
	}
	cp := *p
	if p.RetryLimit != nil {
		v := *p.RetryLimit
		cp.RetryLimit = &v
	}
	if p.AgeLimitSec != nil {
		v := *p.AgeLimitSec
		cp.AgeLimitSec = &v
	}
	return &cp
}

// Delay implements Strategy using the App Engine backoff curve:
// the delay starts at MinBackoffSec, doubles MaxDoublings times, then grows
// linearly by the same step, and never exceeds MaxBackoffSec.
func (p *RetryParameters) Delay(retryCount int) time.Duration {
	exponent := min(retryCount-1, p.MaxDoublings)
	if exponent < 0 {
		exponent = 0
	}
	linearSteps := retryCount - exponent

	ms := p.MinBackoffSec * 1000
	if exponent > 0 {
		ms *= math.Pow(2, float64(min(maxExponent, exponent)))
	}
	if linearSteps > 1 {
		ms *= float64(linearSteps)
	}
	ms = math.Min(ms, p.MaxBackoffSec*1000)
	return time.Duration(ms * float64(time.Millisecond))
}

// CanRetry reports whether a task that has failed retryCount times before
// the current failure may be attempted again. With both a retry limit and
// an age limit the task keeps retrying until both are exceeded. A nil p
// always allows a retry.
func CanRetry(p *RetryParameters, retryCount int, firstTriedAt, now time.Time) bool {
	if p == nil {
		return true
	}
	newRetryCount := retryCount + 1
	ageMs := now.Sub(firstTriedAt).Milliseconds()

	switch {
	case p.RetryLimit != nil && p.AgeLimitSec != nil:
		return *p.RetryLimit >= newRetryCount || *p.AgeLimitSec*1000 >= ageMs
	case p.RetryLimit != nil:
		return *p.RetryLimit >= newRetryCount
	case p.AgeLimitSec != nil:
		return *p.AgeLimitSec*1000 >= ageMs
	default:
		return true
	}
}

// Resolve returns the strategy for a task: its own parameters first, then
// the queue's, then the default policy.
func Resolve(taskParams, queueParams *RetryParameters) (*RetryParameters, Strategy) {
	switch {
	case taskParams != nil:
		return taskParams, taskParams
	case queueParams != nil:
		return queueParams, queueParams
	default:
		return nil, DefaultStrategy()
	}
}
