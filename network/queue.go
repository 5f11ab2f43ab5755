package network

import (
	"sync/atomic"

	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/rs/zerolog"
)

// inboundQueue is how many router callbacks may be waiting for the loop.
const inboundQueue = 1024

// inbox hands router callbacks to the loop goroutine. Unreliable frames
// are dropped when it is full; everything else waits for room.
type inbox[T any] struct {
	ch      chan T
	dropped atomic.Uint64
	log     zerolog.Logger
}

func newInbox[T any](size int, log zerolog.Logger) *inbox[T] {
	return &inbox[T]{ch: make(chan T, size), log: logging.Sampled(log)}
}

func (q *inbox[T]) push(v T, mayDrop bool) {
	if !mayDrop {
		q.ch <- v
		return
	}
	select {
	case q.ch <- v:
	default:
		n := q.dropped.Add(1)
		q.log.Warn().Uint64("dropped", n).Msg("inbound queue full; unreliable frame dropped")
	}
}

// Dropped is how many unreliable frames were discarded so far.
func (q *inbox[T]) Dropped() uint64 { return q.dropped.Load() }

func droppable(f messages.SyncFrame) bool {
	return !netconfig.Delivery(f.Delivery).IsReliable()
}
