package systems

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/yohamta/donburi"
)

// entryPose implements the pose half shared by every host.
type entryPose struct {
	entry *donburi.Entry
}

func (h entryPose) Pose() gamemath.Pose        { return *components.Pose.Get(h.entry) }
func (h entryPose) SetPosition(p mgl64.Vec3)   { components.Pose.Get(h.entry).Position = p }
func (h entryPose) SetRotation(q mgl64.Quat)   { components.Pose.Get(h.entry).Rotation = q }
func (h entryPose) SetScale(s mgl64.Vec3)      { components.Pose.Get(h.entry).Scale = s }
func (h entryPose) NetworkID() (uint64, bool)  { return components.Network.Get(h.entry).ObjectID, true }
func (h entryPose) valid(w donburi.World) bool { return w.Valid(h.entry.Entity()) }

// CharacterHost adapts a character entity to replication.TransformHost.
type CharacterHost struct {
	entryPose
	world donburi.World
}

func NewCharacterHost(w donburi.World, e *donburi.Entry) *CharacterHost {
	return &CharacterHost{entryPose: entryPose{entry: e}, world: w}
}

func (h *CharacterHost) MovingPlatform() replication.Networked {
	r := components.Rider.Get(h.entry)
	if !r.OnBoard || !h.world.Valid(r.Platform) {
		return nil
	}
	return NewPropHost(h.world, h.world.Entry(r.Platform))
}

// SetMovingPlatform records the platform a replicated character stands on.
// Anything other than a *PropHost detaches it.
func (h *CharacterHost) SetMovingPlatform(p replication.Networked) {
	r := components.Rider.Get(h.entry)
	ph, ok := p.(*PropHost)
	if !ok || ph == nil || !ph.valid(h.world) {
		r.OnBoard = false
		return
	}
	pose := h.Pose()
	surface := ph.Pose()
	r.OnBoard = true
	r.Platform = ph.entry.Entity()
	r.Local = surface.InverseTransformPoint(pose.Position)
	r.LocalRotation = surface.InverseTransformRotation(pose.Rotation)
}

// PropHost adapts a prop or platform entity to replication.LocationHost. It
// is also what the registry resolves platform ids to.
type PropHost struct {
	entryPose
	world donburi.World
}

func NewPropHost(w donburi.World, e *donburi.Entry) *PropHost {
	return &PropHost{entryPose: entryPose{entry: e}, world: w}
}

func (h *PropHost) Rigidbody() replication.Rigidbody {
	if !components.Body.Get(h.entry).Rigidbody || !h.entry.HasComponent(components.Velocity) {
		return nil
	}
	return rigidbody{entry: h.entry}
}

func (h *PropHost) Active() bool { return components.Body.Get(h.entry).Active }

func (h *PropHost) SetActive(active bool) { components.Body.Get(h.entry).Active = active }

type rigidbody struct {
	entry *donburi.Entry
}

func (r rigidbody) Velocity() mgl64.Vec3        { return components.Velocity.Get(r.entry).Linear }
func (r rigidbody) AngularVelocity() mgl64.Vec3 { return components.Velocity.Get(r.entry).Angular }
func (r rigidbody) SetVelocity(v mgl64.Vec3)    { components.Velocity.Get(r.entry).Linear = v }
func (r rigidbody) SetAngularVelocity(v mgl64.Vec3) {
	components.Velocity.Get(r.entry).Angular = v
}

// AnimatorHost adapts a character's animator component to
// replication.AnimatorHost.
type AnimatorHost struct {
	entry *donburi.Entry
}

func NewAnimatorHost(e *donburi.Entry) *AnimatorHost {
	return &AnimatorHost{entry: e}
}

func (h *AnimatorHost) AnimatorParameters() replication.AnimatorParams {
	return components.Animator.Get(h.entry).Params
}

func (h *AnimatorHost) ApplyAnimatorParameters(p replication.AnimatorParams, mask netconfig.AnimatorFlag) {
	components.Animator.Get(h.entry).Params.Merge(p, mask)
}

func (h *AnimatorHost) ItemSlotCount() int { return len(components.Animator.Get(h.entry).Slots) }

func (h *AnimatorHost) ItemSlot(i int) replication.ItemSlot {
	return components.Animator.Get(h.entry).Slots[i]
}

// ApplyItemSlot is only called with i below ItemSlotCount.
func (h *AnimatorHost) ApplyItemSlot(i int, s replication.ItemSlot) {
	components.Animator.Get(h.entry).Slots[i] = s
}
