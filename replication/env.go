package replication

import (
	"errors"

	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/rs/zerolog"
)

var (
	// ErrNotSpawned is returned by operations on a monitor that is not spawned.
	ErrNotSpawned = errors.New("replication: object not spawned")
	// ErrUnknownObserver is returned when sending to an observer the transport does not know.
	ErrUnknownObserver = errors.New("replication: unknown observer")
)

// ObserverID identifies a connected peer. The server is always ServerID.
type ObserverID uint64

// ServerID is the observer id of the authoritative server.
const ServerID ObserverID = 0

// Handler receives the payload of a named message.
type Handler func(from ObserverID, payload []byte)

// Transport moves named messages between peers. Implementations deliver
// inbound messages on the goroutine that drives the scheduler.
type Transport interface {
	SendTo(to ObserverID, name string, payload []byte, d netconfig.Delivery) error
	SendToMany(to []ObserverID, name string, payload []byte, d netconfig.Delivery) error
	// SendToAll sends to every connected observer except those listed.
	SendToAll(name string, payload []byte, d netconfig.Delivery, except ...ObserverID) error
	Handle(name string, h Handler)
	Unhandle(name string)
}

// Scheduler is the subset of schedule.Scheduler the monitors use.
type Scheduler interface {
	Register(phase schedule.Phase, fn schedule.Func) schedule.Handle
	Unregister(h schedule.Handle)
}

// Identity names a networked object and its authority.
type Identity struct {
	ObjectID uint64
	Owner    ObserverID
}

// Env carries everything a monitor needs from its peer.
type Env struct {
	Local     ObserverID
	IsServer  bool
	Transport Transport
	Scheduler Scheduler
	Registry  *Registry
	Settings  config.Settings
	Clock     func() float64 // seconds, monotonic
	Log       zerolog.Logger
	Metrics   *Metrics // nil disables metrics
}

func (e Env) now() float64 {
	if e.Clock == nil {
		return 0
	}
	return e.Clock()
}

// isOwner reports whether this peer is the authority for id.
func (e Env) isOwner(id Identity) bool {
	return id.Owner == e.Local
}
