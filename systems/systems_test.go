package systems

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/archetypes"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
)

func spawnPlatform(w donburi.World, id uint64, motion components.PlatformMotionData) *donburi.Entry {
	e := archetypes.Platform.Spawn(w, tags.Local, components.PlatformMotion)
	components.Network.SetValue(e, components.NetworkData{ObjectID: id, Kind: messages.KindPlatform})
	components.PlatformMotion.SetValue(e, motion)
	components.Pose.Get(e).Position = motion.Origin
	components.Body.Get(e).HalfExtents = mgl64.Vec3{2, 0.25, 2}
	return e
}

func spawnCharacter(w donburi.World, id uint64, pos mgl64.Vec3) *donburi.Entry {
	e := archetypes.Character.Spawn(w, tags.Local)
	components.Network.SetValue(e, components.NetworkData{ObjectID: id, Kind: messages.KindCharacter})
	components.Pose.Get(e).Position = pos
	c := components.Character.Get(e)
	c.Speed = 4
	c.Spawn = pos
	return e
}

func TestPlatformPingPong(t *testing.T) {
	w := donburi.NewWorld()
	p := spawnPlatform(w, 1, NewPlatformMotion(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}, 1, 0))

	UpdatePlatforms(w, 0.5)
	assert.InDelta(t, 5, components.Pose.Get(p).Position.X(), 1e-4)

	UpdatePlatforms(w, 0.5)
	assert.InDelta(t, 10, components.Pose.Get(p).Position.X(), 1e-4)
	assert.False(t, components.PlatformMotion.Get(p).Outbound)

	UpdatePlatforms(w, 0.5)
	assert.InDelta(t, 5, components.Pose.Get(p).Position.X(), 1e-4)

	UpdatePlatforms(w, 0.5)
	assert.InDelta(t, 0, components.Pose.Get(p).Position.X(), 1e-4)
	assert.True(t, components.PlatformMotion.Get(p).Outbound)
}

func TestPlatformSpin(t *testing.T) {
	w := donburi.NewWorld()
	p := spawnPlatform(w, 1, NewPlatformMotion(mgl64.Vec3{}, mgl64.Vec3{}, 1, 90))

	UpdatePlatforms(w, 1)
	assert.InDelta(t, 90, components.PlatformMotion.Get(p).Yaw, 1e-9)
	fwd := components.Pose.Get(p).Rotation.Rotate(mgl64.Vec3{0, 0, 1})
	assert.InDelta(t, 1, fwd.X(), 1e-9)
}

func TestReplicatedPlatformIsNotSimulated(t *testing.T) {
	w := donburi.NewWorld()
	p := spawnPlatform(w, 1, NewPlatformMotion(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}, 1, 0))
	p.RemoveComponent(tags.Local)

	UpdatePlatforms(w, 0.5)
	assert.Equal(t, mgl64.Vec3{}, components.Pose.Get(p).Position)
}

func TestCharacterWalksAlongInput(t *testing.T) {
	w := donburi.NewWorld()
	c := spawnCharacter(w, 5, mgl64.Vec3{})
	components.Character.Get(c).Input = mgl64.Vec3{3, 0, 0}

	MoveCharacters(w, 0.5)

	pose := components.Pose.Get(c)
	assert.InDelta(t, 2, pose.Position.X(), 1e-9)
	assert.Equal(t, mgl64.Vec3{4, 0, 0}, components.Velocity.Get(c).Linear)
	fwd := pose.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
	assert.InDelta(t, 1, fwd.X(), 1e-9)
}

func TestRiderIsCarriedByPlatform(t *testing.T) {
	w := donburi.NewWorld()
	p := spawnPlatform(w, 1, NewPlatformMotion(mgl64.Vec3{}, mgl64.Vec3{10, 0, 0}, 1, 0))
	c := spawnCharacter(w, 5, mgl64.Vec3{1, 0, 0})

	MoveCharacters(w, 0.1)
	r := components.Rider.Get(c)
	require.True(t, r.OnBoard)
	assert.Equal(t, p.Entity(), r.Platform)

	UpdatePlatforms(w, 0.5)
	MoveCharacters(w, 0.1)

	assert.InDelta(t, 6, components.Pose.Get(c).Position.X(), 1e-4)
	assert.True(t, components.Rider.Get(c).OnBoard)
}

func TestRiderLeavesPlatform(t *testing.T) {
	w := donburi.NewWorld()
	spawnPlatform(w, 1, NewPlatformMotion(mgl64.Vec3{0, 0.3, 0}, mgl64.Vec3{}, 1, 0))
	c := spawnCharacter(w, 5, mgl64.Vec3{0, 0.3, 0})

	MoveCharacters(w, 0.1)
	require.True(t, components.Rider.Get(c).OnBoard)

	components.Character.Get(c).Input = mgl64.Vec3{1, 0, 0}
	MoveCharacters(w, 1)

	assert.False(t, components.Rider.Get(c).OnBoard)
	assert.Zero(t, components.Pose.Get(c).Position.Y())
}

func TestOnSurface(t *testing.T) {
	surface := gamemath.PoseAt(mgl64.Vec3{0, 2, 0})
	ext := mgl64.Vec3{1, 0.1, 1}

	assert.True(t, OnSurface(surface, ext, mgl64.Vec3{0.5, 2, -0.5}))
	assert.False(t, OnSurface(surface, ext, mgl64.Vec3{1.5, 2, 0}))
	assert.False(t, OnSurface(surface, ext, mgl64.Vec3{0, 0, 0}))
}

func TestPropBouncesAndSettles(t *testing.T) {
	w := donburi.NewWorld()
	e := archetypes.Prop.Spawn(w, tags.Local)
	b := components.Body.Get(e)
	b.Rigidbody = true
	b.Gravity = 9.81
	b.Bounce = 0.5
	components.Pose.Get(e).Position = mgl64.Vec3{0, 2, 0}
	components.Velocity.Get(e).Angular = mgl64.Vec3{0, 90, 0}

	for i := 0; i < 500; i++ {
		SimulateProps(w, 0.02)
		require.GreaterOrEqual(t, components.Pose.Get(e).Position.Y(), 0.0)
	}

	assert.Zero(t, components.Pose.Get(e).Position.Y())
	assert.Equal(t, mgl64.Vec3{}, components.Velocity.Get(e).Linear)
}

func TestInactivePropIsFrozen(t *testing.T) {
	w := donburi.NewWorld()
	e := archetypes.Prop.Spawn(w, tags.Local)
	b := components.Body.Get(e)
	b.Rigidbody = true
	b.Gravity = 9.81
	b.Active = false
	components.Pose.Get(e).Position = mgl64.Vec3{0, 2, 0}

	SimulateProps(w, 0.5)
	assert.Equal(t, 2.0, components.Pose.Get(e).Position.Y())
}

func TestWanderReachesTargets(t *testing.T) {
	w := donburi.NewWorld()
	e := archetypes.NPC.Spawn(w, tags.Local)
	components.Network.SetValue(e, components.NetworkData{ObjectID: 7, Kind: messages.KindCharacter})
	c := components.Character.Get(e)
	c.Speed = 3
	components.Wander.Get(e).Radius = 5
	components.Animator.Get(e).Slots = make([]replication.ItemSlot, 2)
	rng := rand.New(rand.NewPCG(1, 2))

	moved := false
	for i := 0; i < 600; i++ {
		Wander(w, 0.02, rng)
		MoveCharacters(w, 0.02)
		Animate(w)
		if components.Animator.Get(e).Params.Moving {
			moved = true
		}
		require.LessOrEqual(t, components.Pose.Get(e).Position.Len(), 5.5)
	}
	assert.True(t, moved)
}

func TestAnimateDerivesLocomotion(t *testing.T) {
	w := donburi.NewWorld()
	c := spawnCharacter(w, 5, mgl64.Vec3{})
	components.Character.Get(c).Input = mgl64.Vec3{0, 0, 1}

	MoveCharacters(w, 0.1)
	Animate(w)

	p := components.Animator.Get(c).Params
	assert.True(t, p.Moving)
	assert.InDelta(t, 4, p.Speed, 1e-6)
	assert.InDelta(t, 1, p.ForwardMovement, 1e-6)
	assert.InDelta(t, 0, p.HorizontalMovement, 1e-6)
	assert.InDelta(t, 0, p.Yaw, 1e-6)
}
