package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/systems"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	kickInterval  = 3.0 // seconds between prop kicks
	blinkInterval = 7.0 // seconds between active-state toggles
	kickSpeed     = 4.0
	kickLift      = 5.0
	kickSpin      = 180.0
)

var localPropQuery = donburi.NewQuery(filter.Contains(tags.Prop, tags.Local, components.Body))

func (s *Server) fixedUpdate(dt float64) {
	systems.Wander(s.world, dt, s.rng)
	systems.UpdatePlatforms(s.world, dt)
	systems.MoveCharacters(s.world, dt)
	systems.SimulateProps(s.world, dt)
}

func (s *Server) update(dt float64) {
	systems.Animate(s.world)
	s.stirProps(dt)
	s.processEvents()
}

func (s *Server) processEvents() {
	components.ObserverConnectedEvent.ProcessEvents(s.world)
	components.ObserverDisconnectedEvent.ProcessEvents(s.world)
	components.RespawnedEvent.ProcessEvents(s.world)
	components.TeleportedEvent.ProcessEvents(s.world)
}

// stirProps keeps the scene moving: now and then a rigidbody prop is kicked
// into the air and a kinematic prop is switched on or off. Props that leave
// the scene are teleported back to its centre.
func (s *Server) stirProps(dt float64) {
	var bodies, kinematic []*donburi.Entry
	localPropQuery.Each(s.world, func(e *donburi.Entry) {
		if components.Body.Get(e).Rigidbody {
			bodies = append(bodies, e)
		} else {
			kinematic = append(kinematic, e)
		}
	})

	for _, e := range bodies {
		if !s.inBounds(components.Pose.Get(e).Position) {
			s.teleport(e, mgl64.Vec3{s.scene.Width / 2, 0, s.scene.Depth / 2})
		}
	}

	s.kickTimer += dt
	if s.kickTimer >= kickInterval && len(bodies) > 0 {
		s.kickTimer = 0
		e := bodies[s.rng.IntN(len(bodies))]
		angle := s.rng.Float64() * 2 * math.Pi
		vel := components.Velocity.Get(e)
		vel.Linear = mgl64.Vec3{math.Cos(angle) * kickSpeed, kickLift, math.Sin(angle) * kickSpeed}
		vel.Angular = mgl64.Vec3{0, (s.rng.Float64()*2 - 1) * kickSpin, 0}
	}

	s.blinkTimer += dt
	if s.blinkTimer >= blinkInterval && len(kinematic) > 0 {
		s.blinkTimer = 0
		e := kinematic[s.rng.IntN(len(kinematic))]
		loc := components.Replica.Get(e).Location
		if loc == nil {
			return
		}
		if err := loc.SetActive(!components.Body.Get(e).Active); err != nil {
			s.log.Warn().Err(err).Uint64("object", components.Network.Get(e).ObjectID).Msg("toggle active")
		}
	}
}

func (s *Server) inBounds(p mgl64.Vec3) bool {
	return p[0] >= 0 && p[0] <= s.scene.Width && p[2] >= 0 && p[2] <= s.scene.Depth
}

// teleport moves e discontinuously and tells its monitors to snap.
func (s *Server) teleport(e *donburi.Entry, to mgl64.Vec3) {
	components.Pose.Get(e).Position = to
	if e.HasComponent(components.Velocity) {
		components.Velocity.Get(e).Linear = mgl64.Vec3{}
	}
	components.TeleportedEvent.Publish(s.world, components.Teleported{Entity: e.Entity()})
	s.log.Debug().Uint64("object", components.Network.Get(e).ObjectID).Msg("teleported")
}
