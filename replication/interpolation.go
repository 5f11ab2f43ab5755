package replication

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/shared/gamemath"
)

// Sample is a rendered or target position and orientation.
type Sample struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Interpolator glides a rendered sample toward the latest received target
// with bounded, non-overshooting steps.
type Interpolator struct {
	current Sample
	target  Sample

	distance float64
	angle    float64

	lastReceive      float64
	received         bool
	initialSync      bool
	maxExtrapolation float64
}

// NewInterpolator starts at start. The first received sample snaps.
func NewInterpolator(start Sample, maxExtrapolation float64) *Interpolator {
	return &Interpolator{
		current:          start,
		target:           start,
		initialSync:      true,
		maxExtrapolation: maxExtrapolation,
	}
}

// SetTargetPosition stores a new target position. With extrapolate set and
// a previous receive on record, the target is pushed forward along velocity
// by the time elapsed since that receive, capped at maxExtrapolation.
func (in *Interpolator) SetTargetPosition(pos, velocity mgl64.Vec3, now float64, extrapolate bool) {
	if extrapolate && !in.initialSync && in.received {
		lag := math.Abs(now - in.lastReceive)
		if lag > in.maxExtrapolation {
			lag = in.maxExtrapolation
		}
		pos = pos.Add(velocity.Mul(lag))
	}
	in.target.Position = pos
	in.distance = in.current.Position.Sub(pos).Len()
}

// SetTargetRotation stores a new target orientation.
func (in *Interpolator) SetTargetRotation(rot mgl64.Quat) {
	in.target.Rotation = rot
	in.angle = gamemath.Angle(in.current.Rotation, rot)
}

// Received records the local receive time of a frame.
func (in *Interpolator) Received(now float64) {
	in.lastReceive = now
	in.received = true
}

// Step advances the rendered sample by fraction of the distance and angle
// measured at the last receive. The first step after a receive in the
// initial-sync state snaps to the target.
func (in *Interpolator) Step(fraction float64) Sample {
	if in.initialSync {
		if in.received {
			in.Snap(in.target)
		}
		return in.current
	}
	fraction = gamemath.Clamp01(fraction)
	in.current.Position = gamemath.MoveTowards(in.current.Position, in.target.Position, in.distance*fraction)
	in.current.Rotation = gamemath.RotateTowards(in.current.Rotation, in.target.Rotation, in.angle*fraction)
	return in.current
}

// Snap sets both current and target to s and clears the glide.
func (in *Interpolator) Snap(s Sample) {
	in.current = s
	in.target = s
	in.distance = 0
	in.angle = 0
	in.initialSync = false
}

// Restart snaps to s and makes the next received sample snap as well.
func (in *Interpolator) Restart(s Sample) {
	in.Snap(s)
	in.initialSync = true
	in.received = false
}

func (in *Interpolator) Current() Sample { return in.current }
func (in *Interpolator) Target() Sample { return in.target }
func (in *Interpolator) Distance() float64 { return in.distance }
func (in *Interpolator) Angle() float64 { return in.angle }
func (in *Interpolator) InitialSync() bool { return in.initialSync }
