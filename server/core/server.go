// Package core is the authoritative replication server: it owns the donburi
// world, simulates NPCs, props and platforms, admits observers and drives
// every replication monitor from one scheduler.
package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/greedyvox/netsync/capture"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/scenedata"
	"github.com/greedyvox/netsync/systems"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
)

// Transport is the server side of the network: replication frames plus the
// session messages that announce objects.
type Transport interface {
	replication.Transport
	Send(to replication.ObserverID, msg any) error
	Broadcast(msg any, except ...replication.ObserverID) error
	// Poll dispatches queued inbound messages on the calling goroutine.
	Poll() int
}

// Options carries the collaborators of a Server.
type Options struct {
	Transport Transport
	Scene     *scenedata.Scene     // nil uses scenedata.Default
	Capture   *capture.Writer      // nil disables frame capture
	Metrics   *replication.Metrics // nil disables metrics
	Log       zerolog.Logger
	Seed      uint64
}

// Server manages the world and the observers connected to it. All methods
// must be called from the loop goroutine; the transport guarantees that for
// its callbacks.
type Server struct {
	settings  config.Settings
	scene     *scenedata.Scene
	world     donburi.World
	sched     *schedule.Scheduler
	loop      *schedule.Loop
	transport Transport
	env       replication.Env
	replicas  *systems.Replicas
	rng       *rand.Rand
	log       zerolog.Logger

	now        float64
	nextObject uint64
	joins      int
	observers  map[replication.ObserverID]donburi.Entity

	kickTimer  float64
	blinkTimer float64
}

// NewServer builds the world for opts.Scene and spawns its platforms, props
// and NPCs.
func NewServer(settings config.Settings, opts Options) (*Server, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("server: transport is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	scene := opts.Scene
	if scene == nil {
		scene = scenedata.Default()
	}

	s := &Server{
		settings:  settings,
		scene:     scene,
		world:     donburi.NewWorld(),
		transport: opts.Transport,
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		log:       logging.Component(opts.Log, "server"),
		observers: make(map[replication.ObserverID]donburi.Entity),
	}
	s.sched = schedule.New(schedule.Rates{
		ClientHz:      settings.Network.SyncRateClient,
		ServerHz:      settings.Network.SyncRateServer,
		FixedTimestep: settings.Network.FixedTimestep,
	})
	s.loop = schedule.NewLoop(s.sched, settings.Network.FrameRate, s.poll, s.log)

	var frames replication.Transport = opts.Transport
	if opts.Capture != nil {
		frames = capture.NewTransport(opts.Transport, opts.Capture, s.log)
	}
	s.env = replication.Env{
		Local:     replication.ServerID,
		IsServer:  true,
		Transport: frames,
		Scheduler: s.sched,
		Registry:  replication.NewRegistry(),
		Settings:  settings,
		Clock:     s.clock,
		Log:       opts.Log,
		Metrics:   opts.Metrics,
	}
	s.replicas = systems.NewReplicas(s.world, s.env, s)

	// Simulation runs ahead of the monitors registered by populate.
	s.sched.Register(schedule.Update, func(dt float64) { s.now += dt })
	s.sched.Register(schedule.FixedUpdate, s.fixedUpdate)
	s.sched.Register(schedule.Update, s.update)

	if err := s.populate(); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("scene", scene.Name).
		Int("platforms", len(scene.Platforms)).
		Int("props", len(scene.Props)).
		Int("npcs", settings.Server.NPCs).
		Msg("world ready")
	return s, nil
}

func (s *Server) clock() float64 { return s.now }

func (s *Server) poll() { s.transport.Poll() }

// Run drives the world until ctx is done or Stop is called.
func (s *Server) Run(ctx context.Context) {
	s.loop.Run(ctx)
}

func (s *Server) Stop() {
	s.loop.Stop()
}

// Tick runs one frame of dt seconds, including the inbound poll.
func (s *Server) Tick(dt float64) {
	s.loop.Tick(dt)
}

// World returns the ECS world
func (s *Server) World() donburi.World {
	return s.world
}

func (s *Server) Scene() *scenedata.Scene { return s.scene }

// Replicas exposes the monitor bookkeeping of the world.
func (s *Server) Replicas() *systems.Replicas { return s.replicas }

// ObserverCount returns the number of joined observers
func (s *Server) ObserverCount() int {
	return len(s.observers)
}

// Observers reports every joined observer at the position of its character,
// ordered by id. It is the server's replication.ObserverSource.
func (s *Server) Observers() []replication.Observer {
	out := make([]replication.Observer, 0, len(s.observers))
	for id, ent := range s.observers {
		o := replication.Observer{ID: id}
		if s.world.Valid(ent) {
			if c := components.Observer.Get(s.world.Entry(ent)).Character; s.world.Valid(c) {
				o.Position = components.Pose.Get(s.world.Entry(c)).Position
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) newObjectID() uint64 {
	s.nextObject++
	return s.nextObject
}
