package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MoveTowards moves current toward target by at most maxDelta and never
// overshoots. It returns target exactly once the remaining distance fits.
func MoveTowards(current, target mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	diff := target.Sub(current)
	dist := diff.Len()
	if dist == 0 || dist <= maxDelta {
		return target
	}
	if maxDelta <= 0 {
		return current
	}
	return current.Add(diff.Mul(maxDelta / dist))
}

// Angle returns the angle in degrees between two orientations.
func Angle(a, b mgl64.Quat) float64 {
	dot := math.Abs(a.Normalize().Dot(b.Normalize()))
	if dot >= 1 {
		return 0
	}
	return mgl64.RadToDeg(2 * math.Acos(dot))
}

// RotateTowards rotates from toward to by at most maxDegrees along the
// shortest arc. It returns to exactly once the remaining angle fits.
func RotateTowards(from, to mgl64.Quat, maxDegrees float64) mgl64.Quat {
	angle := Angle(from, to)
	if angle == 0 || angle <= maxDegrees {
		return to
	}
	if maxDegrees <= 0 {
		return from
	}
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, maxDegrees/angle).Normalize()
}
