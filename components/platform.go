package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/yohamta/donburi"
)

// PlatformMotionData moves a platform back and forth between Origin and
// Origin+Travel while spinning it around the Y axis.
type PlatformMotionData struct {
	Origin mgl64.Vec3
	Travel mgl64.Vec3
	Spin   float64 // degrees per second
	Yaw    float64 // degrees

	// Out runs 0..1 and Back runs 1..0; Outbound selects the active leg.
	Out      *gween.Tween
	Back     *gween.Tween
	Outbound bool
}

var PlatformMotion = donburi.NewComponentType[PlatformMotionData]()

// RiderData links a character to the platform it stands on. Local and
// LocalRotation are the character's pose in the platform's space.
type RiderData struct {
	Platform      donburi.Entity
	OnBoard       bool
	Local         mgl64.Vec3
	LocalRotation mgl64.Quat
}

var Rider = donburi.NewComponentType[RiderData]()
