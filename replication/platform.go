package replication

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/shared/gamemath"
)

// ToPlatformSpace expresses a world position and rotation relative to a
// platform pose.
func ToPlatformSpace(pos mgl64.Vec3, rot mgl64.Quat, platform gamemath.Pose) (mgl64.Vec3, mgl64.Quat) {
	return platform.InverseTransformPoint(pos), platform.InverseTransformRotation(rot)
}

// FromPlatformSpace is the inverse of ToPlatformSpace.
func FromPlatformSpace(pos mgl64.Vec3, rot mgl64.Quat, platform gamemath.Pose) (mgl64.Vec3, mgl64.Quat) {
	return platform.TransformPoint(pos), platform.TransformRotation(rot)
}
