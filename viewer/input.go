package viewer

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/yohamta/donburi"
)

// teleportDistance is how far T moves the character along its heading.
const teleportDistance = 8.0

var itemKeys = []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4}

func (g *Game) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.showTargets = !g.showTargets
	}
	e := g.character
	if e == nil || !g.world.Valid(e.Entity()) {
		return
	}

	components.Character.Get(e).Input = moveDirection(ebiten.IsKeyPressed)

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		respawn(g.world, e)
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		pose := components.Pose.Get(e)
		forward := pose.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
		teleport(g.world, e, pose.Position.Add(forward.Mul(teleportDistance)))
	}

	slots := components.Animator.Get(e).Slots
	for i, k := range itemKeys {
		if inpututil.IsKeyJustPressed(k) && len(slots) > 0 {
			slots[0].ID = int32(i)
		}
	}
}

// moveDirection maps arrow keys and WASD to a unit direction on the ground
// plane. Screen up is world -Z.
func moveDirection(pressed func(ebiten.Key) bool) mgl64.Vec3 {
	var dir mgl64.Vec3
	if pressed(ebiten.KeyArrowLeft) || pressed(ebiten.KeyA) {
		dir[0]--
	}
	if pressed(ebiten.KeyArrowRight) || pressed(ebiten.KeyD) {
		dir[0]++
	}
	if pressed(ebiten.KeyArrowUp) || pressed(ebiten.KeyW) {
		dir[2]--
	}
	if pressed(ebiten.KeyArrowDown) || pressed(ebiten.KeyS) {
		dir[2]++
	}
	if dir.Len() == 0 {
		return dir
	}
	return dir.Normalize()
}

// respawn returns e to its spawn point off any platform. Processing the
// event makes its transform monitor send the pose as a respawn snap.
func respawn(w donburi.World, e *donburi.Entry) {
	components.Pose.Get(e).Position = components.Character.Get(e).Spawn
	components.Rider.SetValue(e, components.RiderData{})
	components.RespawnedEvent.Publish(w, components.Respawned{Entity: e.Entity()})
}

// teleport moves e discontinuously. Processing the event makes its transform
// monitor send the new pose as a reliable snap.
func teleport(w donburi.World, e *donburi.Entry, to mgl64.Vec3) {
	components.Pose.Get(e).Position = to
	components.Rider.SetValue(e, components.RiderData{})
	components.TeleportedEvent.Publish(w, components.Teleported{Entity: e.Entity()})
}

func processEvents(w donburi.World) {
	components.RespawnedEvent.ProcessEvents(w)
	components.TeleportedEvent.ProcessEvents(w)
}
