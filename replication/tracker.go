package replication

// Tracked remembers the last value that was actually transmitted. A value
// is dirty until Commit records it, so a skipped or failed send leaves it
// dirty for the next tick.
type Tracked[T comparable] struct {
	last T
	set  bool
}

// Dirty reports whether v differs from the last committed value. Nothing
// committed yet counts as dirty.
func (t *Tracked[T]) Dirty(v T) bool {
	return !t.set || t.last != v
}

// Commit records v as transmitted.
func (t *Tracked[T]) Commit(v T) {
	t.last = v
	t.set = true
}

// Reset forgets the committed value, forcing the next Dirty to report true.
func (t *Tracked[T]) Reset() {
	var zero T
	t.last = zero
	t.set = false
}

// Last returns the committed value.
func (t *Tracked[T]) Last() (T, bool) {
	return t.last, t.set
}
