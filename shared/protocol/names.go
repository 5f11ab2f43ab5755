// Package protocol names the replication messages exchanged between peers.
package protocol

import "fmt"

// Direction says which side handles a message.
type Direction string

const (
	// ToServer messages are handled by the server.
	ToServer Direction = "Server"
	// ToClient messages are handled by clients.
	ToClient Direction = "Client"
)

// Kind identifies the monitor and frame type of a message.
type Kind string

const (
	KindTransform                Kind = "Transform"
	KindTransformBaseline        Kind = "TransformBaseline"
	KindTransformBaselineRequest Kind = "TransformBaselineRequest"
	KindTransformSnap            Kind = "TransformSnap"
	KindAnimator                 Kind = "Anima"
	KindAnimatorBaseline         Kind = "AnimaBaseline"
	KindAnimatorBaselineRequest  Kind = "AnimaBaselineRequest"
	KindLocation                 Kind = "LocationMonitor"
	KindLocationActive           Kind = "LocationMonitorActive"
	KindLocationSnap             Kind = "LocationMonitorSnap"
)

// Name builds the routing key for a message about objectID owned by owner.
func Name(owner uint64, dir Direction, kind Kind, objectID uint64) string {
	return fmt.Sprintf("%dMsg%s%s%d", owner, dir, kind, objectID)
}
