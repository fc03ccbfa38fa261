package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/appscale/taskqueue/middleware"
	"github.com/appscale/taskqueue/task"
)

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *task.Task, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *task.Task, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	if err := chain(context.Background(), &task.Task{Name: "test"}, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	err := chain(context.Background(), &task.Task{}, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *task.Task, next middleware.Handler) error {
		return next(ctx)
	}
	want := errors.New("handler error")

	err := middleware.Chain(mw)(context.Background(), &task.Task{}, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	err := mw(context.Background(), &task.Task{Queue: "default", Name: "panicky"}, func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic delivering task default/panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	err := mw(context.Background(), &task.Task{Name: "normal"}, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	want := errors.New("fail")

	err := mw(context.Background(), &task.Task{Name: "log-test", Queue: "default"}, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default(), time.Second)

	err := mw(context.Background(), &task.Task{Name: "bounded"}, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline on the delivery context")
		}
		if remaining := time.Until(deadline); remaining > time.Second {
			t.Errorf("deadline too far away: %v", remaining)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimeout_DefaultWhenUnset(t *testing.T) {
	mw := middleware.Timeout(slog.Default(), 0)

	_ = mw(context.Background(), &task.Task{}, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("a zero timeout must still bound the delivery")
		}
		return nil
	})
}

func TestTimeout_Expires(t *testing.T) {
	mw := middleware.Timeout(slog.Default(), 20*time.Millisecond)

	err := mw(context.Background(), &task.Task{Name: "slow"}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
