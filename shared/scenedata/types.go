// Package scenedata describes the layout of a replication scene: where
// characters spawn, which platforms move and which props lie around. It is
// shared by the server and the viewer and loads from Tiled TMX maps.
package scenedata

import "github.com/go-gl/mathgl/mgl64"

// Scene is a parsed scene layout in world units. The map's X axis is world
// X and its Y axis is world Z.
type Scene struct {
	Name      string
	Width     float64
	Depth     float64
	Spawns    []Spawn
	Platforms []Platform
	Props     []Prop
}

// Spawn is a character spawn point.
type Spawn struct {
	Position mgl64.Vec3
	Index    int
}

// Platform is a moving platform. It travels from Position to
// Position+Travel and back, taking LegSeconds each way.
type Platform struct {
	Label       string
	Position    mgl64.Vec3
	HalfExtents mgl64.Vec3
	Travel      mgl64.Vec3
	LegSeconds  float64
	Spin        float64 // degrees per second
}

// Prop is a loose object. Rigidbody props fall and bounce.
type Prop struct {
	Label     string
	Position  mgl64.Vec3
	Rigidbody bool
}

// SpawnAt returns spawn point i, wrapping around. A scene without spawns
// uses its centre.
func (s *Scene) SpawnAt(i int) mgl64.Vec3 {
	if len(s.Spawns) == 0 {
		return mgl64.Vec3{s.Width / 2, 0, s.Depth / 2}
	}
	if i < 0 {
		i = -i
	}
	return s.Spawns[i%len(s.Spawns)].Position
}

// Default returns the built-in scene used when no TMX file is configured.
func Default() *Scene {
	return &Scene{
		Name:  "default",
		Width: 40,
		Depth: 40,
		Spawns: []Spawn{
			{Position: mgl64.Vec3{8, 0, 8}, Index: 0},
			{Position: mgl64.Vec3{32, 0, 8}, Index: 1},
			{Position: mgl64.Vec3{8, 0, 32}, Index: 2},
			{Position: mgl64.Vec3{32, 0, 32}, Index: 3},
		},
		Platforms: []Platform{
			{
				Label:       "ferry",
				Position:    mgl64.Vec3{12, 0, 20},
				HalfExtents: mgl64.Vec3{2, 0.25, 2},
				Travel:      mgl64.Vec3{16, 0, 0},
				LegSeconds:  6,
			},
			{
				Label:       "carousel",
				Position:    mgl64.Vec3{20, 0, 30},
				HalfExtents: mgl64.Vec3{3, 0.25, 3},
				LegSeconds:  1,
				Spin:        30,
			},
		},
		Props: []Prop{
			{Label: "crate", Position: mgl64.Vec3{14, 0, 12}, Rigidbody: true},
			{Label: "barrel", Position: mgl64.Vec3{26, 0, 12}, Rigidbody: true},
			{Label: "ball", Position: mgl64.Vec3{20, 0, 16}, Rigidbody: true},
			{Label: "lamp", Position: mgl64.Vec3{20, 0, 4}},
		},
	}
}
