package deliver_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/appscale/taskqueue/deliver"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		eta  time.Time
		want string
	}{
		{time.Unix(1700000000, 0), "1700000000.000000"},
		{time.Unix(1700000000, 123456789), "1700000000.123456"},
		{time.Unix(0, 5000), "0.000005"},
	}
	for _, tt := range tests {
		if got := deliver.FormatETA(tt.eta); got != tt.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tt.eta, got, tt.want)
		}
	}
}

// ──────────────────────────────────────────────────
// HTTP
// ──────────────────────────────────────────────────

func TestHTTP_Success(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get(deliver.HeaderTaskName)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := deliver.NewHTTP(nil)
	err := d.Deliver(context.Background(), &deliver.Request{
		Task:   "task1",
		Method: http.MethodPost,
		URL:    srv.URL + "/worker",
		Header: http.Header{deliver.HeaderTaskName: {"task1"}},
		Body:   []byte("x"),
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/worker" || gotBody != "x" || gotHeader != "task1" {
		t.Errorf("unexpected request: %s %s body=%q task=%q", gotMethod, gotPath, gotBody, gotHeader)
	}
}

func TestHTTP_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := deliver.NewHTTP(srv.Client()).Deliver(context.Background(), &deliver.Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	var se *deliver.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", se.StatusCode)
	}
}

func TestHTTP_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := deliver.NewHTTP(nil).Deliver(ctx, &deliver.Request{Method: http.MethodGet, URL: srv.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Broker
// ──────────────────────────────────────────────────

func TestBroker_PushesEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := deliver.NewBroker(client, deliver.WithKeyPrefix("tq:"))
	first := time.UnixMilli(1700000000123)
	eta := time.UnixMicro(1700000001000001)
	req := &deliver.Request{
		Queue:        "default",
		Task:         "task7",
		Method:       http.MethodPost,
		URL:          "http://app/worker",
		Header:       http.Header{"X-Appengine-Queuename": {"default"}},
		Body:         []byte("payload"),
		RetryCount:   2,
		FirstTriedAt: first,
		ETA:          eta,
	}
	if err := b.Deliver(context.Background(), req); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	items, err := client.LRange(context.Background(), "tq:default", 0, -1).Result()
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	env, err := deliver.DecodeEnvelope([]byte(items[0]))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	want := &deliver.Envelope{
		Queue:      "default",
		Name:       "task7",
		Method:     http.MethodPost,
		URL:        "http://app/worker",
		Header:     map[string][]string{"X-Appengine-Queuename": {"default"}},
		Body:       []byte("payload"),
		RetryCount: 2,
		FirstTryMs: 1700000000123,
		ETAUsec:    1700000001000001,
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestBroker_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := deliver.NewBroker(client).Deliver(context.Background(), &deliver.Request{Queue: "q", Task: "t"})
	if err == nil {
		t.Fatal("expected an error with Redis unavailable")
	}
}
