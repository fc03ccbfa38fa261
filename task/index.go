package task

import (
	"container/heap"
	"time"
)

// Index is a min-heap of task names ordered by (ETA, name). Queues keep the
// task records in a map and use the Index only to find the next due name,
// re-inserting or fixing an entry explicitly whenever its ETA changes.
//
// Index is not safe for concurrent use; callers hold the queue lock.
type Index struct {
	h   entries
	pos map[string]*entry
}

type entry struct {
	name  string
	eta   time.Time
	index int
}

type entries []*entry

func (e entries) Len() int { return len(e) }

func (e entries) Less(i, j int) bool {
	if e[i].eta.Equal(e[j].eta) {
		return e[i].name < e[j].name
	}
	return e[i].eta.Before(e[j].eta)
}

func (e entries) Swap(i, j int) {
	e[i], e[j] = e[j], e[i]
	e[i].index = i
	e[j].index = j
}

func (e *entries) Push(x any) {
	it := x.(*entry)
	it.index = len(*e)
	*e = append(*e, it)
}

func (e *entries) Pop() any {
	old := *e
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*e = old[:n-1]
	return it
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{pos: make(map[string]*entry)}
}

// Len returns the number of indexed names.
func (x *Index) Len() int { return len(x.h) }

// Contains reports whether name is indexed.
func (x *Index) Contains(name string) bool {
	_, ok := x.pos[name]
	return ok
}

// Set inserts name with the given ETA, or moves it if already present.
func (x *Index) Set(name string, eta time.Time) {
	if it, ok := x.pos[name]; ok {
		it.eta = eta
		heap.Fix(&x.h, it.index)
		return
	}
	it := &entry{name: name, eta: eta}
	heap.Push(&x.h, it)
	x.pos[name] = it
}

// Remove drops name from the index and reports whether it was present.
func (x *Index) Remove(name string) bool {
	it, ok := x.pos[name]
	if !ok {
		return false
	}
	heap.Remove(&x.h, it.index)
	delete(x.pos, name)
	return true
}

// Peek returns the earliest name and its ETA without removing it.
func (x *Index) Peek() (string, time.Time, bool) {
	if len(x.h) == 0 {
		return "", time.Time{}, false
	}
	it := x.h[0]
	return it.name, it.eta, true
}

// Pop removes and returns the earliest name and its ETA.
func (x *Index) Pop() (string, time.Time, bool) {
	if len(x.h) == 0 {
		return "", time.Time{}, false
	}
	it := heap.Pop(&x.h).(*entry)
	delete(x.pos, it.name)
	return it.name, it.eta, true
}

// Due pops names whose ETA is not after now, in order, until keep has
// accepted limit of them. Names keep rejects stay in the index.
func (x *Index) Due(now time.Time, limit int, keep func(name string) bool) []string {
	var out, skipped []string
	var skippedETA []time.Time
	for len(out) < limit {
		name, eta, ok := x.Peek()
		if !ok || eta.After(now) {
			break
		}
		x.Pop()
		if keep(name) {
			out = append(out, name)
			continue
		}
		skipped = append(skipped, name)
		skippedETA = append(skippedETA, eta)
	}
	for i, name := range skipped {
		x.Set(name, skippedETA[i])
	}
	return out
}

// Clear empties the index.
func (x *Index) Clear() {
	x.h = nil
	x.pos = make(map[string]*entry)
}
