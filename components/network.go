package components

import (
	"github.com/greedyvox/netsync/replication"
	"github.com/yohamta/donburi"
)

// NetworkData is the network identity of a replicated entity.
type NetworkData struct {
	ObjectID uint64
	Owner    replication.ObserverID
	Kind     string // one of the messages.Kind* constants
	Label    string
}

var Network = donburi.NewComponentType[NetworkData]()
