package systems

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/archetypes"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
)

const (
	// CharacterSpeed is the walking speed of every character, in units per second.
	CharacterSpeed = 4.0
	// ItemSlots is how many item slots a character's animator carries.
	ItemSlots = 2
)

// SpawnEventOf describes e for peers that do not have it yet.
func SpawnEventOf(e *donburi.Entry) messages.SpawnEvent {
	nd := components.Network.Get(e)
	pose := components.Pose.Get(e)
	ev := messages.SpawnEvent{
		ObjectID: nd.ObjectID,
		Owner:    uint64(nd.Owner),
		Kind:     nd.Kind,
		Position: pose.Position,
		Euler:    gamemath.QuatToEuler(pose.Rotation),
		Label:    nd.Label,
	}
	if e.HasComponent(components.Body) {
		body := components.Body.Get(e)
		ev.Rigidbody = body.Rigidbody
		ev.Extents = body.HalfExtents
	}
	return ev
}

// Spawn creates the entity announced by ev and attaches its replicas.
// Objects owned by this peer are tagged Local so the simulation drives them.
func (r *Replicas) Spawn(ev messages.SpawnEvent) (*donburi.Entry, error) {
	if _, ok := r.Find(ev.ObjectID); ok {
		return nil, fmt.Errorf("object %d already spawned", ev.ObjectID)
	}

	var e *donburi.Entry
	switch ev.Kind {
	case messages.KindCharacter:
		e = archetypes.Character.Spawn(r.world)
		c := components.Character.Get(e)
		c.Speed = CharacterSpeed
		c.Spawn = mgl64.Vec3(ev.Position)
		components.Animator.Get(e).Slots = make([]replication.ItemSlot, ItemSlots)
	case messages.KindProp:
		e = archetypes.Prop.Spawn(r.world)
	case messages.KindPlatform:
		e = archetypes.Platform.Spawn(r.world)
	default:
		return nil, fmt.Errorf("object %d: unknown kind %q", ev.ObjectID, ev.Kind)
	}

	owner := replication.ObserverID(ev.Owner)
	components.Network.SetValue(e, components.NetworkData{
		ObjectID: ev.ObjectID,
		Owner:    owner,
		Kind:     ev.Kind,
		Label:    ev.Label,
	})
	pose := components.Pose.Get(e)
	pose.Position = mgl64.Vec3(ev.Position)
	pose.Rotation = gamemath.EulerToQuat(mgl64.Vec3(ev.Euler))
	if e.HasComponent(components.Body) {
		body := components.Body.Get(e)
		body.Rigidbody = ev.Rigidbody
		body.HalfExtents = mgl64.Vec3(ev.Extents)
	}
	if owner == r.env.Local {
		e.AddComponent(tags.Local)
	}

	if err := r.Attach(e); err != nil {
		r.world.Remove(e.Entity())
		return nil, err
	}
	return e, nil
}

// Despawn removes the entity announced by ev. Unknown ids are ignored.
func (r *Replicas) Despawn(ev messages.DespawnEvent) {
	if e, ok := r.Find(ev.ObjectID); ok {
		r.Detach(e)
	}
}
