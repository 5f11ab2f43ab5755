package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/tags"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	// stepHeight is how far above or below a platform surface a character
	// may be and still board it.
	stepHeight = 0.5
	// groundFriction is the fraction of horizontal prop speed lost per
	// second while resting on the ground.
	groundFriction = 0.8
	// Bounces slower than bounceCutoff end on the ground.
	bounceCutoff = 0.5
	settleSpeed  = 0.05
)

var (
	characterQuery = donburi.NewQuery(filter.Contains(tags.Character, tags.Local, components.Character))
	propQuery      = donburi.NewQuery(filter.Contains(tags.Prop, tags.Local, components.Body))
	boardingQuery  = donburi.NewQuery(filter.Contains(tags.Platform, components.Body))
)

// MoveCharacters walks locally owned characters along their input and keeps
// riders attached to the platform under them.
func MoveCharacters(w donburi.World, dt float64) {
	characterQuery.Each(w, func(e *donburi.Entry) {
		c := components.Character.Get(e)
		pose := components.Pose.Get(e)
		vel := components.Velocity.Get(e)

		carry(w, e, pose)

		input := mgl64.Vec3{c.Input[0], 0, c.Input[2]}
		if input.Len() > 1 {
			input = input.Normalize()
		}
		vel.Linear = input.Mul(c.Speed)
		pose.Position = gamemath.Integrate(pose.Position, vel.Linear, dt)
		if input.Len() > 0 {
			pose.Rotation = Heading(input)
		}

		board(w, e, pose)
	})
}

// Heading returns the rotation that faces dir on the XZ plane.
func Heading(dir mgl64.Vec3) mgl64.Quat {
	return mgl64.QuatRotate(math.Atan2(dir[0], dir[2]), mgl64.Vec3{0, 1, 0})
}

// carry moves a rider with its platform since the last step.
func carry(w donburi.World, e *donburi.Entry, pose *gamemath.Pose) {
	r := components.Rider.Get(e)
	if !r.OnBoard {
		return
	}
	if !w.Valid(r.Platform) {
		r.OnBoard = false
		return
	}
	platform := *components.Pose.Get(w.Entry(r.Platform))
	pose.Position = platform.TransformPoint(r.Local)
	pose.Rotation = platform.TransformRotation(r.LocalRotation)
}

// board attaches the character to the platform under it, or detaches it and
// drops it to the ground when it walked off.
func board(w donburi.World, e *donburi.Entry, pose *gamemath.Pose) {
	r := components.Rider.Get(e)
	var (
		found    bool
		platform donburi.Entity
		surface  gamemath.Pose
	)
	boardingQuery.Each(w, func(p *donburi.Entry) {
		if found {
			return
		}
		body := components.Body.Get(p)
		pp := *components.Pose.Get(p)
		if OnSurface(pp, body.HalfExtents, pose.Position) {
			found = true
			platform = p.Entity()
			surface = pp
		}
	})

	if !found {
		if r.OnBoard {
			r.OnBoard = false
			pose.Position[1] = 0
		}
		return
	}
	r.OnBoard = true
	r.Platform = platform
	r.Local = surface.InverseTransformPoint(pose.Position)
	r.LocalRotation = surface.InverseTransformRotation(pose.Rotation)
}

// OnSurface reports whether pos stands within the footprint of a platform
// posed at surface.
func OnSurface(surface gamemath.Pose, halfExtents, pos mgl64.Vec3) bool {
	local := surface.InverseTransformPoint(pos)
	return math.Abs(local[0]) <= halfExtents[0] &&
		math.Abs(local[2]) <= halfExtents[2] &&
		math.Abs(local[1]) <= stepHeight
}

// SimulateProps integrates locally owned rigidbody props under gravity with
// a bouncy ground plane at y=0.
func SimulateProps(w donburi.World, dt float64) {
	propQuery.Each(w, func(e *donburi.Entry) {
		body := components.Body.Get(e)
		if !body.Rigidbody || !body.Active {
			return
		}
		pose := components.Pose.Get(e)
		vel := components.Velocity.Get(e)

		vel.Linear[1] -= body.Gravity * dt
		pose.Position = gamemath.Integrate(pose.Position, vel.Linear, dt)

		if pose.Position[1] <= 0 {
			pose.Position[1] = 0
			vel.Linear[1] = -vel.Linear[1] * body.Bounce
			if math.Abs(vel.Linear[1]) < bounceCutoff {
				vel.Linear[1] = 0
			}
			damp := gamemath.Clamp01(1 - groundFriction*dt)
			vel.Linear[0] *= damp
			vel.Linear[2] *= damp
			vel.Angular = vel.Angular.Mul(damp)
		}
		if vel.Linear.Len() < settleSpeed && pose.Position[1] == 0 {
			vel.Linear = mgl64.Vec3{}
		}

		if spin := vel.Angular.Len(); spin > 0 {
			turn := mgl64.QuatRotate(mgl64.DegToRad(spin*dt), vel.Angular.Mul(1/spin))
			pose.Rotation = turn.Mul(pose.Rotation).Normalize()
		}
	})
}
