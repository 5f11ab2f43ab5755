package core

import (
	"errors"
	"fmt"

	"github.com/greedyvox/netsync/archetypes"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/systems"
	"github.com/yohamta/donburi"
)

var (
	// ErrVersionMismatch rejects clients built for another protocol version.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrAlreadyJoined rejects a second join from the same observer.
	ErrAlreadyJoined = errors.New("already joined")
)

// Join admits observer id and spawns the character it will own. The
// character is announced by Joined, once the observer is reachable.
func (s *Server) Join(id replication.ObserverID, req messages.JoinRequest) (messages.JoinAccepted, error) {
	if v := s.settings.Server.Version; v != "" && req.Version != v {
		return messages.JoinAccepted{}, fmt.Errorf("%w: server %q, client %q", ErrVersionMismatch, v, req.Version)
	}
	if _, ok := s.observers[id]; ok {
		return messages.JoinAccepted{}, ErrAlreadyJoined
	}

	character := archetypes.Character.Spawn(s.world)
	components.Network.SetValue(character, components.NetworkData{
		ObjectID: s.newObjectID(),
		Owner:    id,
		Kind:     messages.KindCharacter,
		Label:    req.PlayerName,
	})
	s.placeCharacter(character, s.scene.SpawnAt(s.joins))
	s.joins++
	if err := s.replicas.Attach(character); err != nil {
		s.world.Remove(character.Entity())
		return messages.JoinAccepted{}, fmt.Errorf("attach character: %w", err)
	}

	observer := archetypes.Observer.Spawn(s.world)
	components.Observer.SetValue(observer, components.ObserverData{
		ID:        id,
		Name:      req.PlayerName,
		Character: character.Entity(),
	})
	s.observers[id] = observer.Entity()

	s.log.Info().
		Uint64("observer", uint64(id)).
		Str("player", req.PlayerName).
		Uint64("character", components.Network.Get(character).ObjectID).
		Msg("observer admitted")

	return messages.JoinAccepted{
		ObserverID:     uint64(id),
		ServerName:     s.settings.Server.Name,
		SyncRateClient: s.settings.Network.SyncRateClient,
		SyncRateServer: s.settings.Network.SyncRateServer,
		Scene:          s.scene.Name,
	}, nil
}

// Joined replays every networked object to the new observer, announces its
// character to everyone else and sends the location baselines.
func (s *Server) Joined(id replication.ObserverID) {
	character, ok := s.character(id)
	if !ok {
		return
	}

	for _, e := range s.replicas.All() {
		if err := s.transport.Send(id, systems.SpawnEventOf(e)); err != nil {
			s.log.Warn().Err(err).Uint64("observer", uint64(id)).Msg("replay spawn")
			return
		}
	}
	if err := s.transport.Broadcast(systems.SpawnEventOf(character), id); err != nil {
		s.log.Warn().Err(err).Msg("announce character")
	}

	components.ObserverConnectedEvent.Publish(s.world, components.ObserverConnected{ID: id})
	components.ObserverConnectedEvent.ProcessEvents(s.world)
}

// Leave despawns the observer's character everywhere and forgets it.
func (s *Server) Leave(id replication.ObserverID) {
	ent, ok := s.observers[id]
	if !ok {
		return
	}
	character, hasCharacter := s.character(id)
	delete(s.observers, id)

	if hasCharacter {
		ev := messages.DespawnEvent{ObjectID: components.Network.Get(character).ObjectID}
		s.replicas.Detach(character)
		if err := s.transport.Broadcast(ev, id); err != nil {
			s.log.Warn().Err(err).Msg("announce despawn")
		}
	}
	if s.world.Valid(ent) {
		s.world.Remove(ent)
	}

	components.ObserverDisconnectedEvent.Publish(s.world, components.ObserverDisconnected{ID: id})
	components.ObserverDisconnectedEvent.ProcessEvents(s.world)
	s.log.Info().Uint64("observer", uint64(id)).Msg("observer left")
}

// character returns the entity owned by observer id.
func (s *Server) character(id replication.ObserverID) (*donburi.Entry, bool) {
	ent, ok := s.observers[id]
	if !ok || !s.world.Valid(ent) {
		return nil, false
	}
	c := components.Observer.Get(s.world.Entry(ent)).Character
	if !s.world.Valid(c) {
		return nil, false
	}
	return s.world.Entry(c), true
}
