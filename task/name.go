package task

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Namer generates task names for tasks added without one.
type Namer interface {
	NextName() string
}

// Sequence is a Namer producing "task1", "task2", ... from an atomic
// counter, so concurrent adds never need to coordinate.
type Sequence struct {
	n atomic.Uint64
}

// NewSequence returns a Sequence whose first name is "task<start+1>".
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// NextName implements Namer.
func (s *Sequence) NextName() string {
	return "task" + strconv.FormatUint(s.n.Add(1), 10)
}

// RandomName returns a collision-resistant name built from a UUIDv7. Queues
// fall back to it when a generated name is already taken by a client
// supplied one.
func RandomName() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "task-" + id.String()
}

// ChooseName picks the name for a task added without one. It asks namer
// first and falls back to RandomName while taken reports a collision.
func ChooseName(namer Namer, taken func(name string) bool) string {
	name := namer.NextName()
	for taken(name) {
		name = RandomName()
	}
	return name
}
