package systems

import (
	"fmt"
	"sort"

	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

var networkQuery = donburi.NewQuery(filter.Contains(components.Network, components.Replica))

// Replicas attaches replication monitors to networked entities and routes
// the world's observer, respawn and teleport events to them.
type Replicas struct {
	world     donburi.World
	env       replication.Env
	observers replication.ObserverSource
	log       zerolog.Logger
}

// NewReplicas subscribes to the world's events. Call Close to unsubscribe.
func NewReplicas(w donburi.World, env replication.Env, observers replication.ObserverSource) *Replicas {
	r := &Replicas{
		world:     w,
		env:       env,
		observers: observers,
		log:       logging.Component(env.Log, "replicas"),
	}
	components.ObserverConnectedEvent.Subscribe(w, r.onObserverConnected)
	components.ObserverDisconnectedEvent.Subscribe(w, r.onObserverDisconnected)
	components.RespawnedEvent.Subscribe(w, r.onRespawned)
	components.TeleportedEvent.Subscribe(w, r.onTeleported)
	return r
}

func (r *Replicas) Close() {
	components.ObserverConnectedEvent.Unsubscribe(r.world, r.onObserverConnected)
	components.ObserverDisconnectedEvent.Unsubscribe(r.world, r.onObserverDisconnected)
	components.RespawnedEvent.Unsubscribe(r.world, r.onRespawned)
	components.TeleportedEvent.Unsubscribe(r.world, r.onTeleported)
}

// Attach creates and spawns the monitors matching e's kind. Platforms are
// also registered so riders can resolve them by id.
func (r *Replicas) Attach(e *donburi.Entry) error {
	nd := components.Network.Get(e)
	id := replication.Identity{ObjectID: nd.ObjectID, Owner: nd.Owner}
	rep := components.Replica.Get(e)

	switch nd.Kind {
	case messages.KindCharacter:
		rep.Transform = replication.NewTransformMonitor(r.env, id, NewCharacterHost(r.world, e))
		rep.Animator = replication.NewAnimatorMonitor(r.env, id, NewAnimatorHost(e))
		rep.Transform.Spawn()
		rep.Animator.Spawn()
	case messages.KindProp, messages.KindPlatform:
		host := NewPropHost(r.world, e)
		loc, err := replication.NewLocationMonitor(r.env, id, host, r.observers)
		if err != nil {
			return fmt.Errorf("location monitor for object %d: %w", nd.ObjectID, err)
		}
		rep.Location = loc
		if nd.Kind == messages.KindPlatform {
			r.env.Registry.Register(nd.ObjectID, host)
		}
		loc.Spawn()
	default:
		return fmt.Errorf("object %d: unknown kind %q", nd.ObjectID, nd.Kind)
	}

	r.log.Debug().Uint64("object", nd.ObjectID).Str("kind", nd.Kind).Uint64("owner", uint64(nd.Owner)).Msg("replica attached")
	return nil
}

// Detach despawns e's monitors, drops it from the registry and removes the
// entity from the world.
func (r *Replicas) Detach(e *donburi.Entry) {
	nd := components.Network.Get(e)
	components.Replica.Get(e).Despawn()
	r.env.Registry.Unregister(nd.ObjectID)
	r.log.Debug().Uint64("object", nd.ObjectID).Msg("replica detached")
	r.world.Remove(e.Entity())
}

// Find returns the entity carrying objectID.
func (r *Replicas) Find(objectID uint64) (*donburi.Entry, bool) {
	var found *donburi.Entry
	networkQuery.Each(r.world, func(e *donburi.Entry) {
		if found == nil && components.Network.Get(e).ObjectID == objectID {
			found = e
		}
	})
	return found, found != nil
}

// All returns every networked entity ordered by object id.
func (r *Replicas) All() []*donburi.Entry {
	var all []*donburi.Entry
	networkQuery.Each(r.world, func(e *donburi.Entry) { all = append(all, e) })
	sort.Slice(all, func(i, j int) bool {
		return components.Network.Get(all[i]).ObjectID < components.Network.Get(all[j]).ObjectID
	})
	return all
}

// Clear detaches every replica and empties the registry, as on scene unload.
func (r *Replicas) Clear() {
	for _, e := range r.All() {
		r.Detach(e)
	}
	r.env.Registry.Clear()
}

func (r *Replicas) onObserverConnected(w donburi.World, ev components.ObserverConnected) {
	networkQuery.Each(w, func(e *donburi.Entry) {
		if loc := components.Replica.Get(e).Location; loc != nil {
			loc.OnObserverConnected(ev.ID)
		}
	})
}

func (r *Replicas) onObserverDisconnected(w donburi.World, ev components.ObserverDisconnected) {
	networkQuery.Each(w, func(e *donburi.Entry) {
		if loc := components.Replica.Get(e).Location; loc != nil {
			loc.OnObserverDisconnected(ev.ID)
		}
	})
}

func (r *Replicas) onRespawned(w donburi.World, ev components.Respawned) {
	if !w.Valid(ev.Entity) {
		return
	}
	if t := components.Replica.Get(w.Entry(ev.Entity)).Transform; t != nil {
		t.OnRespawn()
	}
}

func (r *Replicas) onTeleported(w donburi.World, ev components.Teleported) {
	if !w.Valid(ev.Entity) {
		return
	}
	rep := components.Replica.Get(w.Entry(ev.Entity))
	if rep.Transform != nil {
		rep.Transform.OnImmediateTransformChange()
	}
	if rep.Location != nil {
		rep.Location.OnImmediateTransformChange()
	}
}
