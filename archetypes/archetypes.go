package archetypes

import (
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
)

var (
	Character = newArchetype(
		tags.Character,
		components.Network,
		components.Pose,
		components.Velocity,
		components.Character,
		components.Rider,
		components.Animator,
		components.Replica,
	)
	NPC = newArchetype(
		tags.Character,
		tags.NPC,
		components.Network,
		components.Pose,
		components.Velocity,
		components.Character,
		components.Rider,
		components.Wander,
		components.Animator,
		components.Replica,
	)
	Prop = newArchetype(
		tags.Prop,
		components.Network,
		components.Pose,
		components.Velocity,
		components.Body,
		components.Replica,
	)
	Platform = newArchetype(
		tags.Platform,
		components.Network,
		components.Pose,
		components.Body,
		components.Replica,
	)
	Observer = newArchetype(
		components.Observer,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

// Spawn creates an entity with the archetype's components plus cs. Poses
// start at the identity.
func (a *archetype) Spawn(w donburi.World, cs ...donburi.IComponentType) *donburi.Entry {
	e := w.Entry(w.Create(
		append(a.components[:len(a.components):len(a.components)], cs...)...,
	))
	if e.HasComponent(components.Pose) {
		components.Pose.SetValue(e, gamemath.IdentityPose())
	}
	if e.HasComponent(components.Body) {
		components.Body.Get(e).Active = true
	}
	return e
}
