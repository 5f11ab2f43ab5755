package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// EulerToQuat builds an orientation from Euler angles in degrees. Rotation is
// applied around Z, then X, then Y (yaw outermost).
func EulerToQuat(euler mgl64.Vec3) mgl64.Quat {
	qx := mgl64.QuatRotate(mgl64.DegToRad(euler[0]), mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(mgl64.DegToRad(euler[1]), mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(mgl64.DegToRad(euler[2]), mgl64.Vec3{0, 0, 1})
	return qy.Mul(qx).Mul(qz).Normalize()
}

// QuatToEuler is the inverse of EulerToQuat. Angles are returned in degrees
// in the range (-180, 180].
func QuatToEuler(q mgl64.Quat) mgl64.Vec3 {
	m := q.Normalize().Mat4()
	sx := -m.At(1, 2)
	if sx > 1 {
		sx = 1
	} else if sx < -1 {
		sx = -1
	}
	x := math.Asin(sx)

	var y, z float64
	if math.Abs(sx) < 0.999999 {
		y = math.Atan2(m.At(0, 2), m.At(2, 2))
		z = math.Atan2(m.At(1, 0), m.At(1, 1))
	} else {
		// gimbal lock: fold roll into yaw
		y = math.Atan2(-m.At(2, 0), m.At(0, 0))
		z = 0
	}
	return mgl64.Vec3{mgl64.RadToDeg(x), mgl64.RadToDeg(y), mgl64.RadToDeg(z)}
}

// Vec32 narrows a vector to wire precision.
func Vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// Vec64 widens a wire vector.
func Vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}
