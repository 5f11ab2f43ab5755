package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/systems"
	"github.com/greedyvox/netsync/tags"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
)

// LocalTransport serves a Server over an in-memory network.Hub. Frames go
// through the hub; session messages queue per observer until the client
// drains them with Messages.
type LocalTransport struct {
	*network.Loopback
	hub     *network.Hub
	pending map[replication.ObserverID][]any
}

func NewLocalTransport(hub *network.Hub) *LocalTransport {
	return &LocalTransport{
		Loopback: hub.Connect(replication.ServerID),
		hub:      hub,
		pending:  make(map[replication.ObserverID][]any),
	}
}

func (t *LocalTransport) connected(id replication.ObserverID) bool {
	for _, p := range t.hub.Peers() {
		if p == id {
			return true
		}
	}
	return false
}

func (t *LocalTransport) Send(to replication.ObserverID, msg any) error {
	if to == replication.ServerID || !t.connected(to) {
		return fmt.Errorf("%w: %d", replication.ErrUnknownObserver, to)
	}
	t.pending[to] = append(t.pending[to], msg)
	return nil
}

func (t *LocalTransport) Broadcast(msg any, except ...replication.ObserverID) error {
	for _, p := range t.hub.Peers() {
		if p == replication.ServerID || excluded(p, except) {
			continue
		}
		t.pending[p] = append(t.pending[p], msg)
	}
	return nil
}

// Messages drains the session messages queued for id.
func (t *LocalTransport) Messages(id replication.ObserverID) []any {
	out := t.pending[id]
	delete(t.pending, id)
	return out
}

func excluded(id replication.ObserverID, except []replication.ObserverID) bool {
	for _, e := range except {
		if e == id {
			return true
		}
	}
	return false
}

// LocalClient is an in-process observer of a Server on a LocalTransport. It
// keeps its own world of replicas, as a remote viewer would.
type LocalClient struct {
	id        replication.ObserverID
	server    *Server
	transport *LocalTransport
	link      *network.Loopback
	world     donburi.World
	sched     *schedule.Scheduler
	replicas  *systems.Replicas
	rng       *rand.Rand
	log       zerolog.Logger
	now       float64
	character *donburi.Entry

	// Autopilot makes the owned character wander like an NPC.
	Autopilot bool
}

// NewLocalClient connects observer id to the hub and joins the server.
func NewLocalClient(srv *Server, t *LocalTransport, id replication.ObserverID, name string, settings config.Settings, log zerolog.Logger) (*LocalClient, error) {
	sched := schedule.New(schedule.Rates{
		ClientHz:      settings.Network.SyncRateClient,
		ServerHz:      settings.Network.SyncRateServer,
		FixedTimestep: settings.Network.FixedTimestep,
	})
	c := &LocalClient{
		id:        id,
		server:    srv,
		transport: t,
		link:      t.hub.Connect(id),
		world:     donburi.NewWorld(),
		sched:     sched,
		rng:       rand.New(rand.NewPCG(uint64(id), 7)),
		log:       logging.Component(log, "localClient").With().Uint64("observer", uint64(id)).Logger(),
	}
	c.sched.Register(schedule.Update, func(dt float64) { c.now += dt })
	c.sched.Register(schedule.FixedUpdate, func(dt float64) {
		systems.Wander(c.world, dt, c.rng)
		systems.MoveCharacters(c.world, dt)
	})
	c.sched.Register(schedule.Update, func(float64) { systems.Animate(c.world) })

	c.replicas = systems.NewReplicas(c.world, replication.Env{
		Local:     id,
		Transport: c.link,
		Scheduler: c.sched,
		Registry:  replication.NewRegistry(),
		Settings:  settings,
		Clock:     func() float64 { return c.now },
		Log:       log,
	}, nil)

	if _, err := srv.Join(id, messages.JoinRequest{Version: settings.Server.Version, PlayerName: name}); err != nil {
		t.hub.Disconnect(id)
		return nil, fmt.Errorf("join %s: %w", name, err)
	}
	srv.Joined(id)
	return c, nil
}

func (c *LocalClient) ID() replication.ObserverID { return c.id }

func (c *LocalClient) World() donburi.World { return c.world }

func (c *LocalClient) Replicas() *systems.Replicas { return c.replicas }

// Character returns the character this client owns, once spawned.
func (c *LocalClient) Character() (*donburi.Entry, bool) {
	if c.character == nil || !c.world.Valid(c.character.Entity()) {
		return nil, false
	}
	return c.character, true
}

// Step applies queued session messages and inbound frames, then advances
// the client's scheduler by dt.
func (c *LocalClient) Step(dt float64) {
	for _, msg := range c.transport.Messages(c.id) {
		switch m := msg.(type) {
		case messages.SpawnEvent:
			e, err := c.replicas.Spawn(m)
			if err != nil {
				c.log.Warn().Err(err).Msg("spawn")
				continue
			}
			if replication.ObserverID(m.Owner) == c.id && m.Kind == messages.KindCharacter {
				c.character = e
				if c.Autopilot {
					e.AddComponent(tags.NPC)
					e.AddComponent(components.Wander)
					components.Wander.Get(e).Radius = npcRadius
				}
			}
		case messages.DespawnEvent:
			c.replicas.Despawn(m)
		}
	}
	c.link.Poll()
	c.sched.Advance(dt)
}

// Leave disconnects the client from the hub and the server.
func (c *LocalClient) Leave() {
	c.replicas.Clear()
	c.replicas.Close()
	c.transport.hub.Disconnect(c.id)
	c.server.Leave(c.id)
}
