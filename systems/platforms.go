package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/tags"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

var platformQuery = donburi.NewQuery(filter.Contains(tags.Platform, tags.Local, components.PlatformMotion))

// NewPlatformMotion returns motion that covers travel in legSeconds each way
// with eased turnarounds, spinning at spin degrees per second.
func NewPlatformMotion(origin, travel mgl64.Vec3, legSeconds, spin float64) components.PlatformMotionData {
	if legSeconds <= 0 {
		legSeconds = 1
	}
	return components.PlatformMotionData{
		Origin:   origin,
		Travel:   travel,
		Spin:     spin,
		Out:      gween.New(0, 1, float32(legSeconds), ease.InOutSine),
		Back:     gween.New(1, 0, float32(legSeconds), ease.InOutSine),
		Outbound: true,
	}
}

// UpdatePlatforms advances every locally simulated platform by dt seconds.
// Replicated platforms are moved by their LocationMonitor instead.
func UpdatePlatforms(w donburi.World, dt float64) {
	platformQuery.Each(w, func(e *donburi.Entry) {
		m := components.PlatformMotion.Get(e)
		pose := components.Pose.Get(e)

		t := advanceLeg(m, dt)
		pose.Position = m.Origin.Add(m.Travel.Mul(t))

		m.Yaw = math.Mod(m.Yaw+m.Spin*dt, 360)
		pose.Rotation = mgl64.QuatRotate(mgl64.DegToRad(m.Yaw), mgl64.Vec3{0, 1, 0})
	})
}

// advanceLeg steps the active tween and flips direction at either end.
func advanceLeg(m *components.PlatformMotionData, dt float64) float64 {
	leg := m.Out
	if !m.Outbound {
		leg = m.Back
	}
	if leg == nil {
		return 0
	}
	t, done := leg.Update(float32(dt))
	if done {
		leg.Reset()
		m.Outbound = !m.Outbound
	}
	return float64(t)
}
