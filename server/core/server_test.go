package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/tags"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"
)

const frame = 1.0 / 60

type session struct {
	settings  config.Settings
	hub       *network.Hub
	transport *LocalTransport
	server    *Server
}

func newSession(t *testing.T, settings config.Settings) *session {
	t.Helper()
	hub := network.NewHub(network.HubOptions{})
	transport := NewLocalTransport(hub)
	srv, err := NewServer(settings, Options{Transport: transport, Log: zerolog.Nop(), Seed: 1})
	require.NoError(t, err)
	return &session{settings: settings, hub: hub, transport: transport, server: srv}
}

func (s *session) join(t *testing.T, id replication.ObserverID, name string) *LocalClient {
	t.Helper()
	c, err := NewLocalClient(s.server, s.transport, id, name, s.settings, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func (s *session) run(seconds float64, clients ...*LocalClient) {
	for i := 0; i < int(seconds/frame); i++ {
		s.server.Tick(frame)
		for _, c := range clients {
			c.Step(frame)
		}
	}
}

func objectIDs(reps interface{ All() []*donburi.Entry }) []uint64 {
	var ids []uint64
	for _, e := range reps.All() {
		ids = append(ids, components.Network.Get(e).ObjectID)
	}
	return ids
}

func TestNewServerPopulatesScene(t *testing.T) {
	settings := config.Default()
	s := newSession(t, settings)

	scene := s.server.Scene()
	want := len(scene.Platforms) + settings.Server.Props + settings.Server.NPCs
	assert.Len(t, s.server.Replicas().All(), want)
	assert.Equal(t, len(scene.Platforms), s.server.env.Registry.Len())
}

func TestNewServerRequiresTransport(t *testing.T) {
	_, err := NewServer(config.Default(), Options{Log: zerolog.Nop()})
	assert.Error(t, err)
}

func TestJoinReplaysWorld(t *testing.T) {
	s := newSession(t, config.Default())
	c := s.join(t, 1, "alice")

	c.Step(frame)

	assert.Equal(t, objectIDs(s.server.Replicas()), objectIDs(c.Replicas()))
	own, ok := c.Character()
	require.True(t, ok)
	assert.True(t, own.HasComponent(tags.Local))
	assert.Equal(t, replication.ObserverID(1), components.Network.Get(own).Owner)
	assert.Equal(t, 1, s.server.ObserverCount())
}

func TestJoinVersionMismatch(t *testing.T) {
	settings := config.Default()
	settings.Server.Version = "2"
	s := newSession(t, settings)

	_, err := s.server.Join(5, messages.JoinRequest{Version: "1", PlayerName: "old"})
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Zero(t, s.server.ObserverCount())
}

func TestJoinTwiceRejected(t *testing.T) {
	s := newSession(t, config.Default())
	s.join(t, 1, "alice")

	_, err := s.server.Join(1, messages.JoinRequest{PlayerName: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestObserversFollowCharacters(t *testing.T) {
	s := newSession(t, config.Default())
	s.join(t, 2, "bob")
	s.join(t, 1, "alice")

	obs := s.server.Observers()
	require.Len(t, obs, 2)
	assert.Equal(t, replication.ObserverID(1), obs[0].ID)
	assert.Equal(t, s.server.Scene().SpawnAt(1), obs[0].Position)
	assert.Equal(t, s.server.Scene().SpawnAt(0), obs[1].Position)
}

func TestCharactersReachOtherObservers(t *testing.T) {
	s := newSession(t, config.Default())
	a := s.join(t, 1, "alice")
	b := s.join(t, 2, "bob")

	s.run(0.5, a, b)

	aChar, ok := a.Character()
	require.True(t, ok)
	bChar, ok := b.Character()
	require.True(t, ok)
	_, ok = b.Replicas().Find(components.Network.Get(aChar).ObjectID)
	assert.True(t, ok, "bob sees alice")
	_, ok = a.Replicas().Find(components.Network.Get(bChar).ObjectID)
	assert.True(t, ok, "alice sees bob")

	components.Character.Get(aChar).Input = mgl64.Vec3{1, 0, 0}
	s.run(1, a, b)
	components.Character.Get(aChar).Input = mgl64.Vec3{}
	s.run(2, a, b)

	id := components.Network.Get(aChar).ObjectID
	want := components.Pose.Get(aChar).Position
	onServer, ok := s.server.Replicas().Find(id)
	require.True(t, ok)
	onBob, ok := b.Replicas().Find(id)
	require.True(t, ok)

	assert.InDelta(t, want.X(), components.Pose.Get(onServer).Position.X(), 0.05)
	assert.InDelta(t, want.X(), components.Pose.Get(onBob).Position.X(), 0.05)
	assert.InDelta(t, want.Z(), components.Pose.Get(onBob).Position.Z(), 0.05)
}

func TestLeaveDespawnsEverywhere(t *testing.T) {
	s := newSession(t, config.Default())
	a := s.join(t, 1, "alice")
	b := s.join(t, 2, "bob")
	s.run(0.2, a, b)

	bChar, ok := b.Character()
	require.True(t, ok)
	id := components.Network.Get(bChar).ObjectID

	b.Leave()
	s.run(0.2, a)

	_, ok = a.Replicas().Find(id)
	assert.False(t, ok)
	_, ok = s.server.Replicas().Find(id)
	assert.False(t, ok)
	assert.Equal(t, 1, s.server.ObserverCount())
	assert.Len(t, s.server.Observers(), 1)
}

func TestServerObjectsReachObserver(t *testing.T) {
	s := newSession(t, config.Default())
	c := s.join(t, 1, "alice")
	s.run(1, c)

	for _, e := range s.server.Replicas().All() {
		nd := components.Network.Get(e)
		if nd.Kind != messages.KindPlatform {
			continue
		}
		replica, ok := c.Replicas().Find(nd.ObjectID)
		require.True(t, ok)
		got := components.Pose.Get(replica).Position
		want := components.Pose.Get(e).Position
		assert.Less(t, got.Sub(want).Len(), 3.0, "platform %s", nd.Label)
	}
}
