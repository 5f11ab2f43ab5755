package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/yohamta/donburi"
)

var Pose = donburi.NewComponentType[gamemath.Pose]()

type VelocityData struct {
	Linear  mgl64.Vec3 // units per second
	Angular mgl64.Vec3 // degrees per second, applied around world axes
}

var Velocity = donburi.NewComponentType[VelocityData]()

// BodyData describes a prop. Kinematic props ignore gravity and are moved
// only by replication.
type BodyData struct {
	Rigidbody bool
	Active    bool
	Gravity   float64
	Bounce    float64

	// HalfExtents is the footprint characters can stand on; zero for
	// anything that is not a platform.
	HalfExtents mgl64.Vec3
}

var Body = donburi.NewComponentType[BodyData]()
