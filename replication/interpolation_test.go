package replication

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/stretchr/testify/assert"
)

func startSample() Sample {
	return Sample{Position: mgl64.Vec3{}, Rotation: mgl64.QuatIdent()}
}

func TestFirstReceiveSnaps(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.SetTargetPosition(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{5, 0, 0}, 1, true)
	in.Received(1)

	got := in.Step(0.1)
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, got.Position, "no extrapolation on the initial sync")
	assert.False(t, in.InitialSync())
	assert.Zero(t, in.Distance())
}

func TestStepIsMonotoneAndStopsAtTarget(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.Snap(startSample())

	target := mgl64.Vec3{6, 8, 0}
	in.SetTargetPosition(target, mgl64.Vec3{}, 0, false)
	in.Received(0)
	assert.InDelta(t, 10, in.Distance(), 1e-9)

	prev := 10.0
	for i := 0; i < 20; i++ {
		cur := in.Step(0.3).Position
		remaining := target.Sub(cur).Len()
		assert.LessOrEqual(t, remaining, prev+1e-12, "step %d moved away", i)
		prev = remaining
	}
	assert.Equal(t, target, in.Current().Position)
}

func TestFullFractionReachesTargetInOneStep(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.Snap(startSample())
	rot := mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0})
	in.SetTargetPosition(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{}, 0, false)
	in.SetTargetRotation(rot)

	got := in.Step(1)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, got.Position)
	assert.InDelta(t, 0, gamemath.Angle(got.Rotation, rot), 1e-6)
}

func TestRotationStepsByMeasuredAngle(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.Snap(startSample())
	rot := mgl64.QuatRotate(mgl64.DegToRad(80), mgl64.Vec3{0, 0, 1})
	in.SetTargetRotation(rot)
	assert.InDelta(t, 80, in.Angle(), 1e-6)

	got := in.Step(0.25)
	assert.InDelta(t, 20, gamemath.Angle(mgl64.QuatIdent(), got.Rotation), 1e-6)
}

func TestExtrapolationIsClamped(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.Snap(startSample())
	in.Received(0)

	// 0.1s since the last receive
	in.SetTargetPosition(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 0.1, true)
	assert.InDelta(t, 1.0, in.Target().Position.X(), 1e-9)
	in.Received(0.1)

	// 2s since the last receive is capped at maxExtrapolation
	in.SetTargetPosition(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 2.1, true)
	assert.InDelta(t, 2.5, in.Target().Position.X(), 1e-9)

	// platform-relative targets are never extrapolated
	in.SetTargetPosition(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 2.1, false)
	assert.Equal(t, mgl64.Vec3{}, in.Target().Position)
}

func TestRestartSnapsAgainOnNextReceive(t *testing.T) {
	in := NewInterpolator(startSample(), 0.25)
	in.Snap(startSample())
	in.SetTargetPosition(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{}, 0, false)

	respawn := Sample{Position: mgl64.Vec3{-3, 0, 0}, Rotation: mgl64.QuatIdent()}
	in.Restart(respawn)
	assert.Equal(t, respawn, in.Current())
	assert.Equal(t, respawn, in.Target())
	assert.True(t, in.InitialSync())

	// no receive yet: hold
	assert.Equal(t, respawn, in.Step(1))

	in.SetTargetPosition(mgl64.Vec3{7, 0, 0}, mgl64.Vec3{100, 0, 0}, 1, true)
	in.Received(1)
	assert.Equal(t, mgl64.Vec3{7, 0, 0}, in.Step(0.01).Position)
}
