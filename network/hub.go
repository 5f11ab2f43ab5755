package network

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/netconfig"
)

// HubOptions configures the lossy behavior of a Hub. Drop and reorder only
// ever affect unreliable messages.
type HubOptions struct {
	DropRate float64 // probability in [0,1] that an unreliable message is lost
	Reorder  bool    // shuffle unreliable messages within each flush
	Seed     uint64
}

// Hub connects in-memory peers. Messages queue in the receiver's inbox
// until the receiver calls Poll, mirroring how the socket transports hand
// frames to the loop goroutine.
type Hub struct {
	mu    sync.Mutex
	opts  HubOptions
	rng   *rand.Rand
	peers map[replication.ObserverID]*Loopback
	order []replication.ObserverID
}

func NewHub(opts HubOptions) *Hub {
	return &Hub{
		opts:  opts,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		peers: make(map[replication.ObserverID]*Loopback),
	}
}

// Connect adds a peer. The peer with replication.ServerID is the server.
func (h *Hub) Connect(id replication.ObserverID) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.peers[id]; ok {
		return p
	}
	p := &Loopback{
		hub:      h,
		id:       id,
		handlers: make(map[string]replication.Handler),
		seq:      make(map[seqKey]uint64),
		seen:     make(map[seqKey]uint64),
	}
	h.peers[id] = p
	h.order = append(h.order, id)
	return p
}

// Disconnect removes a peer; queued messages to it are lost.
func (h *Hub) Disconnect(id replication.ObserverID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
	for i, o := range h.order {
		if o == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Peers lists connected peer ids in connection order.
func (h *Hub) Peers() []replication.ObserverID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]replication.ObserverID(nil), h.order...)
}

func (h *Hub) deliver(from replication.ObserverID, to replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[to]
	if !ok {
		return fmt.Errorf("%w: %d", replication.ErrUnknownObserver, to)
	}
	if !d.IsReliable() && h.opts.DropRate > 0 && h.rng.Float64() < h.opts.DropRate {
		return nil
	}
	sender := h.peers[from]
	var seq uint64
	if sender != nil {
		k := seqKey{peer: to, name: name}
		sender.seq[k]++
		seq = sender.seq[k]
	}
	p.inbox = append(p.inbox, envelope{
		from:     from,
		name:     name,
		payload:  append([]byte(nil), payload...),
		delivery: d,
		seq:      seq,
	})
	return nil
}

type seqKey struct {
	peer replication.ObserverID
	name string
}

type envelope struct {
	from     replication.ObserverID
	name     string
	payload  []byte
	delivery netconfig.Delivery
	seq      uint64
}

// Loopback is one peer's replication.Transport on a Hub.
type Loopback struct {
	hub      *Hub
	id       replication.ObserverID
	handlers map[string]replication.Handler
	inbox    []envelope
	seq      map[seqKey]uint64 // outbound, per receiver and name
	seen     map[seqKey]uint64 // inbound, per sender and name
}

func (l *Loopback) ID() replication.ObserverID { return l.id }

func (l *Loopback) SendTo(to replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	return l.hub.deliver(l.id, to, name, payload, d)
}

func (l *Loopback) SendToMany(to []replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	for _, id := range to {
		if err := l.SendTo(id, name, payload, d); err != nil {
			return err
		}
	}
	return nil
}

// SendToAll sends to every other peer except those listed. Clients only
// reach the server.
func (l *Loopback) SendToAll(name string, payload []byte, d netconfig.Delivery, except ...replication.ObserverID) error {
	if l.id != replication.ServerID {
		if excluded(replication.ServerID, except) {
			return nil
		}
		return l.SendTo(replication.ServerID, name, payload, d)
	}
	for _, id := range l.hub.Peers() {
		if id == l.id || excluded(id, except) {
			continue
		}
		if err := l.SendTo(id, name, payload, d); err != nil {
			return err
		}
	}
	return nil
}

func excluded(id replication.ObserverID, except []replication.ObserverID) bool {
	for _, e := range except {
		if e == id {
			return true
		}
	}
	return false
}

func (l *Loopback) Handle(name string, h replication.Handler) { l.handlers[name] = h }

func (l *Loopback) Unhandle(name string) { delete(l.handlers, name) }

// Pending returns the number of queued inbound messages.
func (l *Loopback) Pending() int {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()
	return len(l.inbox)
}

// Poll dispatches queued inbound messages to their handlers and returns how
// many were handled. Sequenced messages older than one already handled are
// discarded, as are messages nobody handles.
func (l *Loopback) Poll() int {
	l.hub.mu.Lock()
	inbox := l.inbox
	l.inbox = nil
	if l.hub.opts.Reorder {
		l.hub.shuffleUnreliable(inbox)
	}
	l.hub.mu.Unlock()

	handled := 0
	for _, e := range inbox {
		if e.delivery != netconfig.Reliable {
			k := seqKey{peer: e.from, name: e.name}
			if e.seq != 0 && e.seq <= l.seen[k] {
				continue
			}
			l.seen[k] = e.seq
		}
		h, ok := l.handlers[e.name]
		if !ok {
			continue
		}
		h(e.from, e.payload)
		handled++
	}
	return handled
}

// shuffleUnreliable permutes the unreliable envelopes among their own slots
// so reliable ones keep their positions and order.
func (h *Hub) shuffleUnreliable(inbox []envelope) {
	var slots []int
	for i, e := range inbox {
		if !e.delivery.IsReliable() {
			slots = append(slots, i)
		}
	}
	h.rng.Shuffle(len(slots), func(a, b int) {
		inbox[slots[a]], inbox[slots[b]] = inbox[slots[b]], inbox[slots[a]]
	})
}
