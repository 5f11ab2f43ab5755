package systems

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	arriveDistance = 0.25
	maxPause       = 2.0 // seconds
)

var wanderQuery = donburi.NewQuery(filter.Contains(tags.NPC, tags.Local, components.Wander))

// Wander steers server-owned NPCs toward random targets around their spawn
// point, pausing briefly at each one. While paused an NPC may swap the item
// in its first slot.
func Wander(w donburi.World, dt float64, rng *rand.Rand) {
	wanderQuery.Each(w, func(e *donburi.Entry) {
		wd := components.Wander.Get(e)
		c := components.Character.Get(e)
		pos := components.Pose.Get(e).Position

		if wd.Pause > 0 {
			wd.Pause -= dt
			c.Input = mgl64.Vec3{}
			return
		}
		if !wd.HasGoal {
			angle := rng.Float64() * 2 * math.Pi
			dist := math.Sqrt(rng.Float64()) * wd.Radius
			wd.Target = c.Spawn.Add(mgl64.Vec3{math.Cos(angle) * dist, 0, math.Sin(angle) * dist})
			wd.HasGoal = true
		}

		to := wd.Target.Sub(pos)
		to[1] = 0
		if to.Len() <= arriveDistance {
			wd.HasGoal = false
			wd.Pause = rng.Float64() * maxPause
			c.Input = mgl64.Vec3{}
			if a := components.Animator.Get(e); len(a.Slots) > 0 && rng.IntN(3) == 0 {
				a.Slots[0].ID = int32(rng.IntN(4))
			}
			return
		}
		c.Input = to.Normalize()
	})
}

var animatedQuery = donburi.NewQuery(filter.Contains(tags.Character, tags.Local, components.Animator))

// Animate derives the locomotion parameters of locally owned characters from
// their velocity and heading.
func Animate(w donburi.World) {
	animatedQuery.Each(w, func(e *donburi.Entry) {
		a := components.Animator.Get(e)
		c := components.Character.Get(e)
		vel := components.Velocity.Get(e).Linear
		pose := components.Pose.Get(e)

		speed := vel.Len()
		local := pose.Rotation.Inverse().Rotate(vel)
		var forward, horizontal float32
		if c.Speed > 0 {
			forward = float32(local[2] / c.Speed)
			horizontal = float32(local[0] / c.Speed)
		}

		a.Params.Speed = float32(speed)
		a.Params.ForwardMovement = forward
		a.Params.HorizontalMovement = horizontal
		a.Params.Moving = speed > 0
		a.Params.Yaw = float32(headingDegrees(pose.Rotation))
	})
}

// headingDegrees returns the yaw of q around the Y axis in 0..360.
func headingDegrees(q mgl64.Quat) float64 {
	fwd := q.Rotate(mgl64.Vec3{0, 0, 1})
	deg := mgl64.RadToDeg(math.Atan2(fwd[0], fwd[2]))
	if deg < 0 {
		deg += 360
	}
	return deg
}
