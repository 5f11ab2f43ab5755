package replication

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformFrameWorldRoundTrip(t *testing.T) {
	in := TransformFrame{
		Mask:     netconfig.TransformPosition | netconfig.TransformRotation | netconfig.TransformScale,
		Position: mgl32.Vec3{1.5, -2, 300.25},
		Velocity: mgl32.Vec3{0, 4, 0},
		Euler:    mgl32.Vec3{0, 90, 0},
		Scale:    mgl32.Vec3{1, 2, 1},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalTransformFrame(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTransformFramePlatformOmitsVelocity(t *testing.T) {
	in := TransformFrame{
		Mask:       netconfig.TransformPlatform | netconfig.TransformPosition,
		PlatformID: 42,
		Position:   mgl32.Vec3{0, 1, 0},
		Velocity:   mgl32.Vec3{9, 9, 9},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalTransformFrame(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), out.PlatformID)
	assert.Equal(t, in.Position, out.Position)
	assert.Equal(t, mgl32.Vec3{}, out.Velocity)
}

func TestRotationOnlyFrameSize(t *testing.T) {
	f := TransformFrame{Mask: netconfig.TransformRotation, Euler: mgl32.Vec3{0, 45, 0}}
	b, err := f.Marshal()
	require.NoError(t, err)
	// mask fixint plus three float32 values
	assert.Len(t, b, 16)
}

func TestEmptyFrameIsOnlyTheMask(t *testing.T) {
	b, err := TransformFrame{}.Marshal()
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestTruncatedFramesAreMalformed(t *testing.T) {
	full, err := TransformFrame{
		Mask:     netconfig.TransformPosition | netconfig.TransformRotation,
		Position: mgl32.Vec3{1, 2, 3},
		Euler:    mgl32.Vec3{4, 5, 6},
	}.Marshal()
	require.NoError(t, err)

	for n := 0; n < len(full); n++ {
		_, err := UnmarshalTransformFrame(full[:n])
		assert.ErrorIs(t, err, wire.ErrMalformed, "prefix of %d bytes", n)
	}
}

func TestTrailingBytesAreMalformed(t *testing.T) {
	b, err := LocationFrame{Mask: netconfig.LocationScale, Scale: mgl32.Vec3{1, 1, 1}}.Marshal()
	require.NoError(t, err)

	_, err = UnmarshalLocationFrame(append(b, 0x01))
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestUnknownMaskBitsAreMalformed(t *testing.T) {
	_, err := UnmarshalTransformFrame([]byte{0x10})
	assert.ErrorIs(t, err, wire.ErrMalformed)

	_, err = UnmarshalLocationFrame([]byte{0x20})
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestSnapFrameRoundTripAndTruncation(t *testing.T) {
	in := SnapFrame{Respawn: true, Position: mgl32.Vec3{20, 0, -3}, Euler: mgl32.Vec3{0, 180, 0}}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalSnapFrame(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	for n := 0; n < len(b); n++ {
		_, err := UnmarshalSnapFrame(b[:n])
		assert.ErrorIs(t, err, wire.ErrMalformed, "prefix of %d bytes", n)
	}
	_, err = UnmarshalSnapFrame(append(b, 0x00))
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestLocationFrameRoundTrip(t *testing.T) {
	in := LocationFrame{
		Mask:            netconfig.LocationAll,
		Position:        mgl32.Vec3{1, 2, 3},
		Velocity:        mgl32.Vec3{0.5, 0, 0},
		BodyVelocity:    mgl32.Vec3{0, -9.81, 0},
		Euler:           mgl32.Vec3{10, 20, 30},
		AngularVelocity: mgl32.Vec3{0, 1, 0},
		Scale:           mgl32.Vec3{2, 2, 2},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalLocationFrame(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAnimatorFrameRoundTripWithSlots(t *testing.T) {
	in := AnimatorFrame{
		Mask: netconfig.AnimatorForwardMovement | netconfig.AnimatorMoving |
			netconfig.AnimatorAbilityIndex | netconfig.AnimatorItemSlots,
		Params: AnimatorParams{
			ForwardMovement: 0.75,
			Moving:          true,
			AbilityIndex:    -3,
		},
		SlotMask: 1<<0 | 1<<5,
	}
	in.Slots[0] = ItemSlot{ID: 7, StateIndex: 1, SubstateIndex: 2}
	in.Slots[5] = ItemSlot{ID: 9, StateIndex: -1, SubstateIndex: 0}

	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalAnimatorFrame(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAnimatorDiffAndMerge(t *testing.T) {
	a := AnimatorParams{Speed: 1, Aiming: true, MovementSetID: 2}
	b := a
	b.Speed = 2
	b.AbilityIntData = 5

	mask := b.Diff(a)
	assert.Equal(t, netconfig.AnimatorSpeed|netconfig.AnimatorAbilityIntData, mask)

	merged := a
	merged.Merge(b, mask)
	assert.Equal(t, b, merged)

	assert.Zero(t, a.Diff(a))
}
