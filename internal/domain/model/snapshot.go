package model

import "time"

// Snapshot is an immutable point-in-time copy of cached data. AsOf carries
// the civil date the data represents (zero for "present"-tense snapshots
// like the user dataset). The owning cache never mutates a snapshot after
// publishing it; readers get a fresh Items slice from Copy so a concurrent
// refresh cannot touch data they are iterating.
type Snapshot[T any] struct {
	Items []T
	AsOf  time.Time
}

// Copy returns a snapshot whose Items slice is independent of the
// receiver's. Element values are copied; snapshots hold value types only.
func (s Snapshot[T]) Copy() Snapshot[T] {
	out := Snapshot[T]{AsOf: s.AsOf}
	if len(s.Items) > 0 {
		out.Items = make([]T, len(s.Items))
		copy(out.Items, s.Items)
	}
	return out
}

// Empty reports whether the snapshot holds no rows.
func (s Snapshot[T]) Empty() bool {
	return len(s.Items) == 0
}
