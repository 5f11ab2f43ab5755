// Package netconfig defines lightweight types shared between client and server
// for network serialization. It must have zero dependencies on ebiten or any
// graphics library so the dedicated server binary stays headless.
package netconfig

import (
	"fmt"
	"strings"
)

// Delivery selects the channel guarantees for a message.
type Delivery int

const (
	// UnreliableSequenced may drop frames; stale frames are discarded.
	UnreliableSequenced Delivery = iota
	// ReliableSequenced retransmits; only the newest frame is applied.
	ReliableSequenced
	// Reliable retransmits and delivers every frame in order.
	Reliable
)

var deliveryNames = map[Delivery]string{
	UnreliableSequenced: "unreliableSequenced",
	ReliableSequenced:   "reliableSequenced",
	Reliable:            "reliable",
}

func (d Delivery) String() string {
	if name, ok := deliveryNames[d]; ok {
		return name
	}
	return "unknown"
}

// IsReliable reports whether the channel retransmits lost frames.
func (d Delivery) IsReliable() bool {
	return d == Reliable || d == ReliableSequenced
}

// ParseDelivery maps a config name to a Delivery.
func ParseDelivery(s string) (Delivery, error) {
	for d, name := range deliveryNames {
		if strings.EqualFold(name, s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown delivery %q", s)
}

// TransformFlag marks which transform fields a frame carries.
type TransformFlag uint8

const (
	TransformPosition TransformFlag = 1 << iota
	TransformRotation
	TransformPlatform
	TransformScale

	TransformAll = TransformPosition | TransformRotation | TransformPlatform | TransformScale
)

func (f TransformFlag) Has(bit TransformFlag) bool { return f&bit != 0 }

func (f TransformFlag) String() string {
	return flagString(uint64(f), []string{"position", "rotation", "platform", "scale"})
}

// LocationFlag marks which location fields a frame carries.
type LocationFlag uint8

const (
	LocationPosition LocationFlag = 1 << iota
	LocationRigidbodyVelocity
	LocationRotation
	LocationRigidbodyAngularVelocity
	LocationScale

	LocationAll = LocationPosition | LocationRigidbodyVelocity | LocationRotation |
		LocationRigidbodyAngularVelocity | LocationScale
)

func (f LocationFlag) Has(bit LocationFlag) bool { return f&bit != 0 }

func (f LocationFlag) String() string {
	return flagString(uint64(f), []string{"position", "velocity", "rotation", "angularVelocity", "scale"})
}

// AnimatorFlag marks which animator parameters a frame carries.
type AnimatorFlag uint16

const (
	AnimatorHorizontalMovement AnimatorFlag = 1 << iota
	AnimatorForwardMovement
	AnimatorPitch
	AnimatorYaw
	AnimatorSpeed
	AnimatorHeight
	AnimatorMoving
	AnimatorAiming
	AnimatorMovementSetID
	AnimatorAbilityIndex
	AnimatorAbilityIntData
	AnimatorAbilityFloatData
	// AnimatorItemSlots marks the presence of the item-slot sub-mask.
	AnimatorItemSlots

	// AnimatorContinuous are blended every render tick on the receiver.
	AnimatorContinuous = AnimatorHorizontalMovement | AnimatorForwardMovement | AnimatorPitch |
		AnimatorYaw | AnimatorSpeed | AnimatorAbilityFloatData
	// AnimatorParams covers the twelve scalar parameters.
	AnimatorParams AnimatorFlag = 1<<12 - 1
	AnimatorAll                 = AnimatorParams | AnimatorItemSlots
)

func (f AnimatorFlag) Has(bit AnimatorFlag) bool { return f&bit != 0 }

func (f AnimatorFlag) String() string {
	return flagString(uint64(f), []string{
		"horizontal", "forward", "pitch", "yaw", "speed", "height", "moving", "aiming",
		"movementSet", "abilityIndex", "abilityInt", "abilityFloat", "itemSlots",
	})
}

// MaxItemSlots is the width of the item-slot sub-mask.
const MaxItemSlots = 8

func flagString(v uint64, names []string) string {
	if v == 0 {
		return "none"
	}
	var parts []string
	for i, name := range names {
		if v&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}
