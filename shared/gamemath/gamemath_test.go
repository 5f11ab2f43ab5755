package gamemath

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestMoveTowardsNeverOvershoots(t *testing.T) {
	cur := mgl64.Vec3{0, 0, 0}
	target := mgl64.Vec3{3, 4, 0}

	step := MoveTowards(cur, target, 2)
	assert.InDelta(t, 2.0, step.Len(), 1e-9)

	assert.Equal(t, target, MoveTowards(cur, target, 5))
	assert.Equal(t, target, MoveTowards(cur, target, 50))
	assert.Equal(t, cur, MoveTowards(cur, target, 0))
}

func TestRotateTowardsReachesTargetExactly(t *testing.T) {
	from := mgl64.QuatIdent()
	to := mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 1, 0})

	half := RotateTowards(from, to, 45)
	assert.InDelta(t, 45.0, Angle(from, half), 1e-6)
	assert.InDelta(t, 45.0, Angle(half, to), 1e-6)

	assert.Equal(t, to, RotateTowards(half, to, 45.0000001))
	assert.Equal(t, to, RotateTowards(from, to, 360))
}

func TestAngleIgnoresQuaternionSign(t *testing.T) {
	q := mgl64.QuatRotate(mgl64.DegToRad(30), mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 0.0, Angle(q, q.Scale(-1)), 1e-9)
}

func TestEulerRoundTrip(t *testing.T) {
	cases := []mgl64.Vec3{
		{0, 0, 0},
		{10, 20, 30},
		{-45, 170, 5},
		{80, -90, -120},
	}
	for _, euler := range cases {
		got := QuatToEuler(EulerToQuat(euler))
		assert.InDeltaSlice(t, euler[:], got[:], 1e-6, "euler %v", euler)
	}
}

func TestEulerYawOnly(t *testing.T) {
	q := EulerToQuat(mgl64.Vec3{0, 90, 0})
	v := q.Rotate(mgl64.Vec3{0, 0, 1})
	assert.InDeltaSlice(t, []float64{1, 0, 0}, v[:], 1e-9)
}

func TestPoseRoundTrip(t *testing.T) {
	p := Pose{
		Position: mgl64.Vec3{10, 2, -4},
		Rotation: EulerToQuat(mgl64.Vec3{0, 90, 0}),
		Scale:    mgl64.Vec3{2, 1, 1},
	}
	world := mgl64.Vec3{3, 5, 7}

	local := p.InverseTransformPoint(world)
	back := p.TransformPoint(local)
	assert.InDeltaSlice(t, world[:], back[:], 1e-9)

	rot := EulerToQuat(mgl64.Vec3{10, 45, 0})
	assert.InDelta(t, 0.0, Angle(rot, p.TransformRotation(p.InverseTransformRotation(rot))), 1e-6)
}

func TestInverseTransformPointZeroScale(t *testing.T) {
	p := IdentityPose()
	p.Scale = mgl64.Vec3{0, 1, 1}
	local := p.InverseTransformPoint(mgl64.Vec3{5, 5, 5})
	assert.Equal(t, mgl64.Vec3{0, 5, 5}, local)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.InDelta(t, 1.0, ClampLength(mgl64.Vec3{3, 4, 0}, 1).Len(), 1e-9)
	assert.Equal(t, 2.0, ClampSpeed(5, 2))
	assert.Equal(t, 0.0, ApplyFriction(0.1, 0.5))
}
