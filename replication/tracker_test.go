package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackedDirtyUntilCommitted(t *testing.T) {
	var tr Tracked[int]
	assert.True(t, tr.Dirty(0), "nothing committed yet")

	tr.Commit(5)
	assert.False(t, tr.Dirty(5))
	assert.True(t, tr.Dirty(6))

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestTrackedSkippedSendStaysDirty(t *testing.T) {
	var tr Tracked[float32]
	tr.Commit(1)

	// sampled but never committed
	assert.True(t, tr.Dirty(2))
	assert.True(t, tr.Dirty(2))

	tr.Commit(2)
	assert.False(t, tr.Dirty(2))
}

func TestTrackedReset(t *testing.T) {
	var tr Tracked[string]
	tr.Commit("a")
	tr.Reset()
	assert.True(t, tr.Dirty("a"))
	_, ok := tr.Last()
	assert.False(t, ok)
}
