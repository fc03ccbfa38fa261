package task_test

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/appscale/taskqueue/backoff"
	"github.com/appscale/taskqueue/task"
)

// ──────────────────────────────────────────────────
// Index
// ──────────────────────────────────────────────────

func TestIndex_OrdersByETAThenName(t *testing.T) {
	base := time.Unix(1700000000, 0)
	x := task.NewIndex()
	x.Set("c", base.Add(2*time.Second))
	x.Set("b", base)
	x.Set("a", base)
	x.Set("d", base.Add(time.Second))

	var got []string
	for x.Len() > 0 {
		name, _, _ := x.Pop()
		got = append(got, name)
	}
	if diff := cmp.Diff([]string{"a", "b", "d", "c"}, got); diff != "" {
		t.Errorf("pop order mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_SetMovesExisting(t *testing.T) {
	base := time.Unix(1700000000, 0)
	x := task.NewIndex()
	x.Set("a", base)
	x.Set("b", base.Add(time.Second))
	x.Set("a", base.Add(time.Hour))

	if x.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", x.Len())
	}
	name, eta, ok := x.Peek()
	if !ok || name != "b" || !eta.Equal(base.Add(time.Second)) {
		t.Fatalf("Peek() = %q %v %v, want b", name, eta, ok)
	}
}

func TestIndex_Remove(t *testing.T) {
	base := time.Unix(1700000000, 0)
	x := task.NewIndex()
	for i, n := range []string{"a", "b", "c"} {
		x.Set(n, base.Add(time.Duration(i)*time.Second))
	}
	if !x.Remove("a") {
		t.Fatal("Remove(a) should report true")
	}
	if x.Remove("a") {
		t.Fatal("second Remove(a) should report false")
	}
	if x.Contains("a") {
		t.Fatal("a should no longer be indexed")
	}
	if name, _, _ := x.Peek(); name != "b" {
		t.Fatalf("Peek() = %q, want b", name)
	}
}

func TestIndex_Due(t *testing.T) {
	base := time.Unix(1700000000, 0)
	x := task.NewIndex()
	x.Set("a", base)
	x.Set("b", base.Add(time.Second))
	x.Set("c", base.Add(2*time.Second))
	x.Set("future", base.Add(time.Hour))

	got := x.Due(base.Add(time.Minute), 10, func(name string) bool { return name != "b" })
	if diff := cmp.Diff([]string{"a", "c"}, got); diff != "" {
		t.Errorf("Due mismatch (-want +got):\n%s", diff)
	}
	if !x.Contains("b") || !x.Contains("future") {
		t.Error("rejected and future names must stay indexed")
	}
	if x.Contains("a") || x.Contains("c") {
		t.Error("accepted names must be removed")
	}

	x.Set("d", base)
	x.Set("e", base)
	if got := x.Due(base, 1, func(string) bool { return true }); len(got) != 1 || got[0] != "d" {
		t.Errorf("Due with limit 1 = %v, want [d]", got)
	}
}

// ──────────────────────────────────────────────────
// Names
// ──────────────────────────────────────────────────

func TestValidName(t *testing.T) {
	valid := []string{"task1", "a_b-C", strings.Repeat("x", 500)}
	invalid := []string{"", "has space", "dot.name", strings.Repeat("x", 501)}
	for _, n := range valid {
		if !task.ValidName(n) {
			t.Errorf("ValidName(%q) = false, want true", n)
		}
	}
	for _, n := range invalid {
		if task.ValidName(n) {
			t.Errorf("ValidName(%q) = true, want false", n)
		}
	}
}

func TestSequence_UniqueUnderConcurrency(t *testing.T) {
	s := task.NewSequence(0)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := s.NextName()
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 5000 {
		t.Fatalf("expected 5000 unique names, got %d", len(seen))
	}
	if !seen["task1"] || !seen["task5000"] {
		t.Error("expected names task1..task5000")
	}
}

func TestRandomName_IsValid(t *testing.T) {
	a, b := task.RandomName(), task.RandomName()
	if a == b {
		t.Fatal("random names should differ")
	}
	if !task.ValidName(a) {
		t.Fatalf("RandomName() = %q is not a valid task name", a)
	}
}

// ──────────────────────────────────────────────────
// Clone
// ──────────────────────────────────────────────────

func TestClone_DoesNotAlias(t *testing.T) {
	limit := 3
	orig := &task.Task{
		Name:   "t",
		Header: http.Header{"X-A": {"1"}},
		Body:   []byte("abc"),
		Retry:  &backoff.RetryParameters{RetryLimit: &limit},
	}
	cp := orig.Clone()
	cp.Header.Set("X-A", "2")
	cp.Body[0] = 'z'
	*cp.Retry.RetryLimit = 9

	if orig.Header.Get("X-A") != "1" || string(orig.Body) != "abc" || *orig.Retry.RetryLimit != 3 {
		t.Fatalf("clone aliases the original: %+v", orig)
	}
}
