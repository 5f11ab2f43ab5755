package components

import (
	"github.com/greedyvox/netsync/replication"
	"github.com/yohamta/donburi"
)

// ObserverData is one joined peer and the character it controls.
type ObserverData struct {
	ID        replication.ObserverID
	Name      string
	Character donburi.Entity
}

var Observer = donburi.NewComponentType[ObserverData]()

// ReplicaData holds the monitors attached to an entity. Unused monitors are nil.
type ReplicaData struct {
	Transform *replication.TransformMonitor
	Animator  *replication.AnimatorMonitor
	Location  *replication.LocationMonitor
}

// Despawn releases every monitor.
func (r *ReplicaData) Despawn() {
	if r.Transform != nil {
		r.Transform.Despawn()
	}
	if r.Animator != nil {
		r.Animator.Despawn()
	}
	if r.Location != nil {
		r.Location.Despawn()
	}
}

var Replica = donburi.NewComponentType[ReplicaData]()
