package backoff_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/appscale/taskqueue/backoff"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_Doubles(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(10); got != 10*time.Second {
		t.Errorf("Delay(10) = %v, want capped at %v", got, 10*time.Second)
	}
}

func TestDefaultStrategy_Curve(t *testing.T) {
	s := backoff.DefaultStrategy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{100, time.Hour},
	}
	for _, tt := range tests {
		if got := s.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// ──────────────────────────────────────────────────
// RetryParameters.Delay
// ──────────────────────────────────────────────────

func TestRetryParameters_DelayCurve(t *testing.T) {
	p := &backoff.RetryParameters{MinBackoffSec: 1, MaxBackoffSec: 100, MaxDoublings: 2}

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},  // 4s * 2 linear steps
		{5, 12 * time.Second}, // 4s * 3 linear steps
		{6, 16 * time.Second},
		{26, 96 * time.Second},
		{27, 100 * time.Second},
		{500, 100 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.retryCount); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryParameters_DelayMonotonic(t *testing.T) {
	params := []*backoff.RetryParameters{
		backoff.NewRetryParameters(),
		{MinBackoffSec: 0.5, MaxBackoffSec: 30, MaxDoublings: 0},
		{MinBackoffSec: 2, MaxBackoffSec: 7200, MaxDoublings: 5},
		{MinBackoffSec: 1, MaxBackoffSec: 10, MaxDoublings: 4000},
	}
	for _, p := range params {
		maxDelay := time.Duration(p.MaxBackoffSec * float64(time.Second))
		prev := p.Delay(1)
		for n := 2; n <= 3000; n++ {
			got := p.Delay(n)
			if got < prev {
				t.Fatalf("%+v: Delay(%d) = %v < Delay(%d) = %v", *p, n, got, n-1, prev)
			}
			if got > maxDelay {
				t.Fatalf("%+v: Delay(%d) = %v exceeds max %v", *p, n, got, maxDelay)
			}
			if prev == maxDelay && got != maxDelay {
				t.Fatalf("%+v: Delay(%d) = %v, want constant %v once capped", *p, n, got, maxDelay)
			}
			prev = got
		}
		if prev != maxDelay {
			t.Errorf("%+v: Delay never reached max, last = %v", *p, prev)
		}
	}
}

func TestRetryParameters_ImplementsStrategy(t *testing.T) {
	var s backoff.Strategy = backoff.NewRetryParameters()
	if got := s.Delay(1); got != 100*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 100ms", got)
	}
}

// ──────────────────────────────────────────────────
// CanRetry
// ──────────────────────────────────────────────────

func TestCanRetry(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		params     *backoff.RetryParameters
		retryCount int
		age        time.Duration
		want       bool
	}{
		{"nil params", nil, 1000, 1000 * time.Hour, true},
		{"no bounds", &backoff.RetryParameters{}, 1000, 1000 * time.Hour, true},
		{"retry limit not reached", &backoff.RetryParameters{RetryLimit: intPtr(3)}, 2, 0, true},
		{"retry limit reached", &backoff.RetryParameters{RetryLimit: intPtr(3)}, 3, 0, false},
		{"zero retry limit", &backoff.RetryParameters{RetryLimit: intPtr(0)}, 0, 0, false},
		{"age limit not reached", &backoff.RetryParameters{AgeLimitSec: int64Ptr(60)}, 50, 60 * time.Second, true},
		{"age limit exceeded", &backoff.RetryParameters{AgeLimitSec: int64Ptr(60)}, 0, 61 * time.Second, false},
		{
			"both set, only count exceeded",
			&backoff.RetryParameters{RetryLimit: intPtr(1), AgeLimitSec: int64Ptr(60)},
			5, 10 * time.Second, true,
		},
		{
			"both set, only age exceeded",
			&backoff.RetryParameters{RetryLimit: intPtr(10), AgeLimitSec: int64Ptr(60)},
			1, time.Hour, true,
		},
		{
			"both set, both exceeded",
			&backoff.RetryParameters{RetryLimit: intPtr(1), AgeLimitSec: int64Ptr(60)},
			5, time.Hour, false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := backoff.CanRetry(tt.params, tt.retryCount, first, first.Add(tt.age))
			if got != tt.want {
				t.Errorf("CanRetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanRetry_EventuallyStops(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	params := []*backoff.RetryParameters{
		{RetryLimit: intPtr(5)},
		{AgeLimitSec: int64Ptr(30)},
		{RetryLimit: intPtr(5), AgeLimitSec: int64Ptr(30)},
	}
	for _, p := range params {
		p.MinBackoffSec, p.MaxBackoffSec, p.MaxDoublings = 0.1, 10, 3
		now := first
		stopped := false
		for n := 0; n < 10000; n++ {
			if !backoff.CanRetry(p, n, first, now) {
				stopped = true
				break
			}
			now = now.Add(p.Delay(n + 1))
		}
		if !stopped {
			t.Errorf("%+v: CanRetry never returned false", *p)
		}
	}
}

func TestResolve_Precedence(t *testing.T) {
	taskParams := &backoff.RetryParameters{MinBackoffSec: 1, MaxBackoffSec: 1}
	queueParams := &backoff.RetryParameters{MinBackoffSec: 2, MaxBackoffSec: 2}

	if p, s := backoff.Resolve(taskParams, queueParams); p != taskParams || s.Delay(1) != time.Second {
		t.Error("task parameters should win")
	}
	if p, s := backoff.Resolve(nil, queueParams); p != queueParams || s.Delay(1) != 2*time.Second {
		t.Error("queue parameters should apply when the task has none")
	}
	p, s := backoff.Resolve(nil, nil)
	if p != nil {
		t.Error("expected nil parameters without task or queue parameters")
	}
	if s.Delay(1) != 100*time.Millisecond {
		t.Errorf("default Delay(1) = %v, want 100ms", s.Delay(1))
	}
}

func TestRetryParameters_UnmarshalKeepsDefaults(t *testing.T) {
	var p backoff.RetryParameters
	if err := json.Unmarshal([]byte(`{"retry_limit":5,"max_backoff_sec":60}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.RetryLimit == nil || *p.RetryLimit != 5 {
		t.Errorf("RetryLimit = %v, want 5", p.RetryLimit)
	}
	if p.MinBackoffSec != backoff.DefaultMinBackoffSec || p.MaxBackoffSec != 60 || p.MaxDoublings != backoff.DefaultMaxDoublings {
		t.Errorf("curve = %+v", p)
	}
}

func TestRetryParameters_WithDefaults(t *testing.T) {
	tests := []struct {
		name         string
		in           *backoff.RetryParameters
		min, max     float64
		maxDoublings int
	}{
		{"unset curve", &backoff.RetryParameters{RetryLimit: intPtr(5)}, 0.1, 3600, 16},
		{"unset cap", &backoff.RetryParameters{MinBackoffSec: 2, MaxDoublings: 3}, 2, 3600, 3},
		{"explicit curve", &backoff.RetryParameters{MinBackoffSec: 0, MaxBackoffSec: 10, MaxDoublings: 1}, 0, 10, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.WithDefaults()
			if got == tt.in {
				t.Fatal("WithDefaults must return a copy")
			}
			if got.MinBackoffSec != tt.min || got.MaxBackoffSec != tt.max || got.MaxDoublings != tt.maxDoublings {
				t.Errorf("got %+v", *got)
			}
		})
	}

	var nilParams *backoff.RetryParameters
	if nilParams.WithDefaults() != nil {
		t.Error("nil parameters should stay nil")
	}
}

func TestRetryParameters_Validate(t *testing.T) {
	if err := backoff.NewRetryParameters().Validate(); err != nil {
		t.Errorf("defaults: %v", err)
	}
	bad := []*backoff.RetryParameters{
		{MinBackoffSec: -1, MaxBackoffSec: 1},
		{MinBackoffSec: 2, MaxBackoffSec: 1},
		{MaxBackoffSec: 1, MaxDoublings: -1},
		{MaxBackoffSec: 1, RetryLimit: intPtr(-1)},
		{MaxBackoffSec: 1, AgeLimitSec: int64Ptr(-5)},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("%+v: expected an error", *p)
		}
	}
}
