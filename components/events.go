package components

import (
	"github.com/greedyvox/netsync/replication"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

type ObserverConnected struct {
	ID replication.ObserverID
}

type ObserverDisconnected struct {
	ID replication.ObserverID
}

// Respawned is published after a character is moved back to its spawn point.
type Respawned struct {
	Entity donburi.Entity
}

// Teleported is published after an entity's pose is changed discontinuously.
type Teleported struct {
	Entity donburi.Entity
}

var (
	ObserverConnectedEvent    = events.NewEventType[ObserverConnected]()
	ObserverDisconnectedEvent = events.NewEventType[ObserverDisconnected]()
	RespawnedEvent            = events.NewEventType[Respawned]()
	TeleportedEvent           = events.NewEventType[Teleported]()
)
