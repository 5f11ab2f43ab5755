package gamemath

import "github.com/go-gl/mathgl/mgl64"

// Pose is a world transform: position, orientation and per-axis scale.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// IdentityPose returns a pose at the origin with unit scale.
func IdentityPose() Pose {
	return Pose{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// PoseAt returns an unrotated unit-scale pose at pos.
func PoseAt(pos mgl64.Vec3) Pose {
	p := IdentityPose()
	p.Position = pos
	return p
}

// TransformPoint maps a point from this pose's local space into world space.
func (p Pose) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	scaled := mgl64.Vec3{local[0] * p.Scale[0], local[1] * p.Scale[1], local[2] * p.Scale[2]}
	return p.Position.Add(p.Rotation.Rotate(scaled))
}

// InverseTransformPoint maps a world-space point into this pose's local space.
// Axes with zero scale map to zero.
func (p Pose) InverseTransformPoint(world mgl64.Vec3) mgl64.Vec3 {
	v := p.Rotation.Inverse().Rotate(world.Sub(p.Position))
	for i := 0; i < 3; i++ {
		if p.Scale[i] == 0 {
			v[i] = 0
			continue
		}
		v[i] /= p.Scale[i]
	}
	return v
}

// TransformRotation maps a local orientation into world space.
func (p Pose) TransformRotation(local mgl64.Quat) mgl64.Quat {
	return p.Rotation.Mul(local).Normalize()
}

// InverseTransformRotation maps a world orientation into this pose's local space.
func (p Pose) InverseTransformRotation(world mgl64.Quat) mgl64.Quat {
	return p.Rotation.Inverse().Mul(world).Normalize()
}
