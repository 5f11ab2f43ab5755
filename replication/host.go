package replication

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/shared/netconfig"
)

// TransformHost is the character a TransformMonitor replicates.
type TransformHost interface {
	Spatial
	SetPosition(p mgl64.Vec3)
	SetRotation(q mgl64.Quat)
	SetScale(s mgl64.Vec3)
	// MovingPlatform returns the platform the character stands on, or nil.
	MovingPlatform() Networked
	// SetMovingPlatform attaches the character to p; nil detaches it.
	SetMovingPlatform(p Networked)
}

// Rigidbody exposes the physics velocities of a location host.
type Rigidbody interface {
	Velocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	SetAngularVelocity(v mgl64.Vec3)
}

// LocationHost is the prop a LocationMonitor replicates.
type LocationHost interface {
	Spatial
	SetPosition(p mgl64.Vec3)
	SetRotation(q mgl64.Quat)
	SetScale(s mgl64.Vec3)
	// Rigidbody returns nil for kinematic props.
	Rigidbody() Rigidbody
	Active() bool
	SetActive(active bool)
}

// AnimatorHost is the animator an AnimatorMonitor replicates.
type AnimatorHost interface {
	AnimatorParameters() AnimatorParams
	// ApplyAnimatorParameters writes the fields of p selected by mask.
	ApplyAnimatorParameters(p AnimatorParams, mask netconfig.AnimatorFlag)
	// ItemSlotCount is zero when the animator has no item parameters.
	ItemSlotCount() int
	ItemSlot(i int) ItemSlot
	ApplyItemSlot(i int, s ItemSlot)
}
