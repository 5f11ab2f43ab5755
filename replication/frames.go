package replication

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/wire"
)

// TransformFrame is one character transform delta. Position and Euler are
// platform-local when the Platform bit is set, world-space otherwise.
type TransformFrame struct {
	Mask       netconfig.TransformFlag
	PlatformID uint64
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3 // units per second, world frames only
	Euler      mgl32.Vec3 // degrees
	Scale      mgl32.Vec3
}

func (f TransformFrame) Encode(w *wire.Writer) {
	w.Uint(uint64(f.Mask))
	if f.Mask.Has(netconfig.TransformPlatform) {
		w.Uint(f.PlatformID)
		if f.Mask.Has(netconfig.TransformPosition) {
			w.Vec3(f.Position)
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			w.Vec3(f.Euler)
		}
	} else {
		if f.Mask.Has(netconfig.TransformPosition) {
			w.Vec3(f.Position)
			w.Vec3(f.Velocity)
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			w.Vec3(f.Euler)
		}
	}
	if f.Mask.Has(netconfig.TransformScale) {
		w.Vec3(f.Scale)
	}
}

// Marshal encodes the frame into a fresh buffer.
func (f TransformFrame) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	f.Encode(w)
	return w.Bytes()
}

// UnmarshalTransformFrame decodes a whole frame or nothing.
func UnmarshalTransformFrame(b []byte) (TransformFrame, error) {
	r := wire.NewReader(b)
	var f TransformFrame
	mask := r.Uint()
	if r.Err() == nil && mask&^uint64(netconfig.TransformAll) != 0 {
		return TransformFrame{}, fmt.Errorf("%w: transform mask %#x", wire.ErrMalformed, mask)
	}
	f.Mask = netconfig.TransformFlag(mask)
	if f.Mask.Has(netconfig.TransformPlatform) {
		f.PlatformID = r.Uint()
		if f.Mask.Has(netconfig.TransformPosition) {
			f.Position = r.Vec3()
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			f.Euler = r.Vec3()
		}
	} else {
		if f.Mask.Has(netconfig.TransformPosition) {
			f.Position = r.Vec3()
			f.Velocity = r.Vec3()
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			f.Euler = r.Vec3()
		}
	}
	if f.Mask.Has(netconfig.TransformScale) {
		f.Scale = r.Vec3()
	}
	if err := r.Done(); err != nil {
		return TransformFrame{}, err
	}
	return f, nil
}

// LocationFrame is one prop or rigidbody delta. All vectors are world-space.
type LocationFrame struct {
	Mask            netconfig.LocationFlag
	Position        mgl32.Vec3
	Velocity        mgl32.Vec3 // estimated from displacement, units per second
	BodyVelocity    mgl32.Vec3
	Euler           mgl32.Vec3 // degrees
	AngularVelocity mgl32.Vec3
	Scale           mgl32.Vec3
}

func (f LocationFrame) Encode(w *wire.Writer) {
	w.Uint(uint64(f.Mask))
	if f.Mask.Has(netconfig.LocationPosition) {
		w.Vec3(f.Position)
		w.Vec3(f.Velocity)
	}
	if f.Mask.Has(netconfig.LocationRigidbodyVelocity) {
		w.Vec3(f.BodyVelocity)
	}
	if f.Mask.Has(netconfig.LocationRotation) {
		w.Vec3(f.Euler)
	}
	if f.Mask.Has(netconfig.LocationRigidbodyAngularVelocity) {
		w.Vec3(f.AngularVelocity)
	}
	if f.Mask.Has(netconfig.LocationScale) {
		w.Vec3(f.Scale)
	}
}

func (f LocationFrame) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	f.Encode(w)
	return w.Bytes()
}

func UnmarshalLocationFrame(b []byte) (LocationFrame, error) {
	r := wire.NewReader(b)
	var f LocationFrame
	mask := r.Uint()
	if r.Err() == nil && mask&^uint64(netconfig.LocationAll) != 0 {
		return LocationFrame{}, fmt.Errorf("%w: location mask %#x", wire.ErrMalformed, mask)
	}
	f.Mask = netconfig.LocationFlag(mask)
	if f.Mask.Has(netconfig.LocationPosition) {
		f.Position = r.Vec3()
		f.Velocity = r.Vec3()
	}
	if f.Mask.Has(netconfig.LocationRigidbodyVelocity) {
		f.BodyVelocity = r.Vec3()
	}
	if f.Mask.Has(netconfig.LocationRotation) {
		f.Euler = r.Vec3()
	}
	if f.Mask.Has(netconfig.LocationRigidbodyAngularVelocity) {
		f.AngularVelocity = r.Vec3()
	}
	if f.Mask.Has(netconfig.LocationScale) {
		f.Scale = r.Vec3()
	}
	if err := r.Done(); err != nil {
		return LocationFrame{}, err
	}
	return f, nil
}

// SnapFrame is the full world pose of an object after a teleport or a
// respawn. Receivers jump to it instead of gliding.
type SnapFrame struct {
	Respawn  bool
	Position mgl32.Vec3
	Euler    mgl32.Vec3 // degrees
}

func (f SnapFrame) Encode(w *wire.Writer) {
	w.Bool(f.Respawn)
	w.Vec3(f.Position)
	w.Vec3(f.Euler)
}

func (f SnapFrame) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	f.Encode(w)
	return w.Bytes()
}

func UnmarshalSnapFrame(b []byte) (SnapFrame, error) {
	r := wire.NewReader(b)
	var f SnapFrame
	f.Respawn = r.Bool()
	f.Position = r.Vec3()
	f.Euler = r.Vec3()
	if err := r.Done(); err != nil {
		return SnapFrame{}, err
	}
	return f, nil
}

// AnimatorParams are the replicated animator parameters.
type AnimatorParams struct {
	HorizontalMovement float32
	ForwardMovement    float32
	Pitch              float32
	Yaw                float32
	Speed              float32
	Height             float32
	Moving             bool
	Aiming             bool
	MovementSetID      int32
	AbilityIndex       int32
	AbilityIntData     int32
	AbilityFloatData   float32
}

// Diff returns the parameters of p that differ from other.
func (p AnimatorParams) Diff(other AnimatorParams) netconfig.AnimatorFlag {
	var m netconfig.AnimatorFlag
	if p.HorizontalMovement != other.HorizontalMovement {
		m |= netconfig.AnimatorHorizontalMovement
	}
	if p.ForwardMovement != other.ForwardMovement {
		m |= netconfig.AnimatorForwardMovement
	}
	if p.Pitch != other.Pitch {
		m |= netconfig.AnimatorPitch
	}
	if p.Yaw != other.Yaw {
		m |= netconfig.AnimatorYaw
	}
	if p.Speed != other.Speed {
		m |= netconfig.AnimatorSpeed
	}
	if p.Height != other.Height {
		m |= netconfig.AnimatorHeight
	}
	if p.Moving != other.Moving {
		m |= netconfig.AnimatorMoving
	}
	if p.Aiming != other.Aiming {
		m |= netconfig.AnimatorAiming
	}
	if p.MovementSetID != other.MovementSetID {
		m |= netconfig.AnimatorMovementSetID
	}
	if p.AbilityIndex != other.AbilityIndex {
		m |= netconfig.AnimatorAbilityIndex
	}
	if p.AbilityIntData != other.AbilityIntData {
		m |= netconfig.AnimatorAbilityIntData
	}
	if p.AbilityFloatData != other.AbilityFloatData {
		m |= netconfig.AnimatorAbilityFloatData
	}
	return m
}

// Merge copies the fields selected by mask from src into p.
func (p *AnimatorParams) Merge(src AnimatorParams, mask netconfig.AnimatorFlag) {
	if mask.Has(netconfig.AnimatorHorizontalMovement) {
		p.HorizontalMovement = src.HorizontalMovement
	}
	if mask.Has(netconfig.AnimatorForwardMovement) {
		p.ForwardMovement = src.ForwardMovement
	}
	if mask.Has(netconfig.AnimatorPitch) {
		p.Pitch = src.Pitch
	}
	if mask.Has(netconfig.AnimatorYaw) {
		p.Yaw = src.Yaw
	}
	if mask.Has(netconfig.AnimatorSpeed) {
		p.Speed = src.Speed
	}
	if mask.Has(netconfig.AnimatorHeight) {
		p.Height = src.Height
	}
	if mask.Has(netconfig.AnimatorMoving) {
		p.Moving = src.Moving
	}
	if mask.Has(netconfig.AnimatorAiming) {
		p.Aiming = src.Aiming
	}
	if mask.Has(netconfig.AnimatorMovementSetID) {
		p.MovementSetID = src.MovementSetID
	}
	if mask.Has(netconfig.AnimatorAbilityIndex) {
		p.AbilityIndex = src.AbilityIndex
	}
	if mask.Has(netconfig.AnimatorAbilityIntData) {
		p.AbilityIntData = src.AbilityIntData
	}
	if mask.Has(netconfig.AnimatorAbilityFloatData) {
		p.AbilityFloatData = src.AbilityFloatData
	}
}

// ItemSlot is the replicated state of one equipped item slot.
type ItemSlot struct {
	ID            int32
	StateIndex    int32
	SubstateIndex int32
}

// AnimatorFrame is one animator delta. Slot i is present when bit 1<<i of
// SlotMask is set.
type AnimatorFrame struct {
	Mask     netconfig.AnimatorFlag
	Params   AnimatorParams
	SlotMask uint8
	Slots    [netconfig.MaxItemSlots]ItemSlot
}

func (f AnimatorFrame) Encode(w *wire.Writer) {
	w.Uint(uint64(f.Mask))
	p := f.Params
	floats := []struct {
		bit netconfig.AnimatorFlag
		v   float32
	}{
		{netconfig.AnimatorHorizontalMovement, p.HorizontalMovement},
		{netconfig.AnimatorForwardMovement, p.ForwardMovement},
		{netconfig.AnimatorPitch, p.Pitch},
		{netconfig.AnimatorYaw, p.Yaw},
		{netconfig.AnimatorSpeed, p.Speed},
		{netconfig.AnimatorHeight, p.Height},
	}
	for _, fl := range floats {
		if f.Mask.Has(fl.bit) {
			w.Float(fl.v)
		}
	}
	if f.Mask.Has(netconfig.AnimatorMoving) {
		w.Bool(p.Moving)
	}
	if f.Mask.Has(netconfig.AnimatorAiming) {
		w.Bool(p.Aiming)
	}
	if f.Mask.Has(netconfig.AnimatorMovementSetID) {
		w.Int(int64(p.MovementSetID))
	}
	if f.Mask.Has(netconfig.AnimatorAbilityIndex) {
		w.Int(int64(p.AbilityIndex))
	}
	if f.Mask.Has(netconfig.AnimatorAbilityIntData) {
		w.Int(int64(p.AbilityIntData))
	}
	if f.Mask.Has(netconfig.AnimatorAbilityFloatData) {
		w.Float(p.AbilityFloatData)
	}
	if f.Mask.Has(netconfig.AnimatorItemSlots) {
		w.Uint(uint64(f.SlotMask))
		for i := 0; i < netconfig.MaxItemSlots; i++ {
			if f.SlotMask&(1<<i) == 0 {
				continue
			}
			s := f.Slots[i]
			w.Int(int64(s.ID))
			w.Int(int64(s.StateIndex))
			w.Int(int64(s.SubstateIndex))
		}
	}
}

func (f AnimatorFrame) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	f.Encode(w)
	return w.Bytes()
}

func UnmarshalAnimatorFrame(b []byte) (AnimatorFrame, error) {
	r := wire.NewReader(b)
	var f AnimatorFrame
	mask := r.Uint()
	if r.Err() == nil && mask&^uint64(netconfig.AnimatorAll) != 0 {
		return AnimatorFrame{}, fmt.Errorf("%w: animator mask %#x", wire.ErrMalformed, mask)
	}
	f.Mask = netconfig.AnimatorFlag(mask)
	p := &f.Params
	floats := []struct {
		bit netconfig.AnimatorFlag
		dst *float32
	}{
		{netconfig.AnimatorHorizontalMovement, &p.HorizontalMovement},
		{netconfig.AnimatorForwardMovement, &p.ForwardMovement},
		{netconfig.AnimatorPitch, &p.Pitch},
		{netconfig.AnimatorYaw, &p.Yaw},
		{netconfig.AnimatorSpeed, &p.Speed},
		{netconfig.AnimatorHeight, &p.Height},
	}
	for _, fl := range floats {
		if f.Mask.Has(fl.bit) {
			*fl.dst = r.Float()
		}
	}
	if f.Mask.Has(netconfig.AnimatorMoving) {
		p.Moving = r.Bool()
	}
	if f.Mask.Has(netconfig.AnimatorAiming) {
		p.Aiming = r.Bool()
	}
	if f.Mask.Has(netconfig.AnimatorMovementSetID) {
		p.MovementSetID = int32(r.Int())
	}
	if f.Mask.Has(netconfig.AnimatorAbilityIndex) {
		p.AbilityIndex = int32(r.Int())
	}
	if f.Mask.Has(netconfig.AnimatorAbilityIntData) {
		p.AbilityIntData = int32(r.Int())
	}
	if f.Mask.Has(netconfig.AnimatorAbilityFloatData) {
		p.AbilityFloatData = r.Float()
	}
	if f.Mask.Has(netconfig.AnimatorItemSlots) {
		slots := r.Uint()
		if r.Err() == nil && slots > 0xff {
			return AnimatorFrame{}, fmt.Errorf("%w: slot mask %#x", wire.ErrMalformed, slots)
		}
		f.SlotMask = uint8(slots)
		for i := 0; i < netconfig.MaxItemSlots; i++ {
			if f.SlotMask&(1<<i) == 0 {
				continue
			}
			f.Slots[i] = ItemSlot{
				ID:            int32(r.Int()),
				StateIndex:    int32(r.Int()),
				SubstateIndex: int32(r.Int()),
			}
		}
	}
	if err := r.Done(); err != nil {
		return AnimatorFrame{}, err
	}
	return f, nil
}
