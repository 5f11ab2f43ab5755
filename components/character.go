package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/replication"
	"github.com/yohamta/donburi"
)

type CharacterData struct {
	Speed float64 // units per second
	Input mgl64.Vec3

	// Spawn is where the character returns on respawn.
	Spawn mgl64.Vec3
}

var Character = donburi.NewComponentType[CharacterData]()

// WanderData drives a server-owned NPC between random targets.
type WanderData struct {
	Target  mgl64.Vec3
	Radius  float64
	Pause   float64 // seconds left standing at the current target
	HasGoal bool
}

var Wander = donburi.NewComponentType[WanderData]()

// AnimatorData holds the animator state the AnimatorMonitor replicates.
type AnimatorData struct {
	Params replication.AnimatorParams
	Slots  []replication.ItemSlot
}

var Animator = donburi.NewComponentType[AnimatorData]()
