package deliver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxDrain bounds how much of a webhook response body is read before the
// connection is returned to the pool.
const maxDrain = 64 << 10

// HTTP delivers push tasks by calling their webhook directly.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP deliverer. A nil client gets one whose transport
// is instrumented with OpenTelemetry. Deadlines come from the context, so
// the client itself needs no timeout.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTP{client: client}
}

// Deliver issues the webhook call. Any 2xx response is a success.
func (h *HTTP) Deliver(ctx context.Context, req *Request) error {
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("deliver: build request for task %s: %w", req.Task, err)
	}
	hr.Header = req.Header.Clone()
	if hr.Header == nil {
		hr.Header = make(http.Header)
	}

	resp, err := h.client.Do(hr)
	if err != nil {
		return fmt.Errorf("deliver: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
