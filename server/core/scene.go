package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/archetypes"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/systems"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
)

const (
	propGravity = 9.81
	propBounce  = 0.45
	npcRadius   = 6.0
)

// populate spawns the scene's platforms and props, then the configured
// number of NPCs, cycling through the spawn points.
func (s *Server) populate() error {
	for _, p := range s.scene.Platforms {
		e := archetypes.Platform.Spawn(s.world, tags.Local, components.PlatformMotion)
		s.identify(e, messages.KindPlatform, p.Label)
		components.Pose.Get(e).Position = p.Position
		components.Body.Get(e).HalfExtents = p.HalfExtents
		components.PlatformMotion.SetValue(e, systems.NewPlatformMotion(p.Position, p.Travel, p.LegSeconds, p.Spin))
		if err := s.replicas.Attach(e); err != nil {
			return fmt.Errorf("platform %q: %w", p.Label, err)
		}
	}

	props := s.scene.Props
	if n := s.settings.Server.Props; n >= 0 && n < len(props) {
		props = props[:n]
	}
	for _, p := range props {
		e := archetypes.Prop.Spawn(s.world, tags.Local)
		s.identify(e, messages.KindProp, p.Label)
		components.Pose.Get(e).Position = p.Position
		body := components.Body.Get(e)
		body.Rigidbody = p.Rigidbody
		if p.Rigidbody {
			body.Gravity = propGravity
			body.Bounce = propBounce
		}
		if err := s.replicas.Attach(e); err != nil {
			return fmt.Errorf("prop %q: %w", p.Label, err)
		}
	}

	for i := 0; i < s.settings.Server.NPCs; i++ {
		spawn := s.scene.SpawnAt(i)
		e := archetypes.NPC.Spawn(s.world, tags.Local)
		s.identify(e, messages.KindCharacter, fmt.Sprintf("npc-%d", i+1))
		s.placeCharacter(e, spawn)
		components.Wander.Get(e).Radius = npcRadius
		if err := s.replicas.Attach(e); err != nil {
			return fmt.Errorf("npc %d: %w", i+1, err)
		}
	}
	return nil
}

// identify gives e a fresh object id owned by the server.
func (s *Server) identify(e *donburi.Entry, kind, label string) {
	components.Network.SetValue(e, components.NetworkData{
		ObjectID: s.newObjectID(),
		Owner:    replication.ServerID,
		Kind:     kind,
		Label:    label,
	})
}

func (s *Server) placeCharacter(e *donburi.Entry, spawn mgl64.Vec3) {
	components.Pose.Get(e).Position = spawn
	c := components.Character.Get(e)
	c.Speed = systems.CharacterSpeed
	c.Spawn = spawn
	components.Animator.Get(e).Slots = make([]replication.ItemSlot, systems.ItemSlots)
}
