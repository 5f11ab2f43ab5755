// Package viewer is a top-down ebiten client: it joins a server, drives the
// local character from the keyboard and draws every replica it receives.
package viewer

import (
	"bytes"
	"fmt"

	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/systems"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
	"golang.org/x/image/font/gofont/goregular"
)

// Game implements ebiten.Game. The world, scheduler and replicas exist once
// the server has accepted the join.
type Game struct {
	settings config.Settings
	client   *network.Client
	log      zerolog.Logger

	world     donburi.World
	sched     *schedule.Scheduler
	replicas  *systems.Replicas
	now       float64
	character *donburi.Entry

	face        text.Face
	smallFace   text.Face
	showTargets bool
}

func NewGame(settings config.Settings, log zerolog.Logger) (*Game, error) {
	source, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	g := &Game{
		settings:    settings,
		client:      network.NewClient(log),
		log:         logging.Component(log, "viewer"),
		world:       donburi.NewWorld(),
		face:        &text.GoTextFace{Source: source, Size: 14},
		smallFace:   &text.GoTextFace{Source: source, Size: 10},
		showTargets: true,
	}
	g.client.OnJoined = g.onJoined
	g.client.OnSpawn = g.onSpawn
	g.client.OnDespawn = g.onDespawn
	return g, nil
}

// Connect starts the join handshake in the background.
func (g *Game) Connect() {
	c := g.settings.Client
	g.log.Info().Str("address", c.Address).Str("player", c.PlayerName).Msg("connecting")
	g.client.Connect(c.Address, g.settings.Server.Version, c.PlayerName)
}

// Close leaves the session.
func (g *Game) Close() {
	if g.replicas != nil {
		g.replicas.Clear()
		g.replicas.Close()
	}
	g.client.Disconnect()
}

func (g *Game) onJoined(acc messages.JoinAccepted) {
	if g.sched != nil {
		return
	}
	if acc.SyncRateClient > 0 {
		g.settings.Network.SyncRateClient = acc.SyncRateClient
	}
	if acc.SyncRateServer > 0 {
		g.settings.Network.SyncRateServer = acc.SyncRateServer
	}
	g.sched = schedule.New(schedule.Rates{
		ClientHz:      g.settings.Network.SyncRateClient,
		ServerHz:      g.settings.Network.SyncRateServer,
		FixedTimestep: g.settings.Network.FixedTimestep,
	})
	g.sched.Register(schedule.Update, func(dt float64) { g.now += dt })
	g.sched.Register(schedule.FixedUpdate, func(dt float64) { systems.MoveCharacters(g.world, dt) })
	g.sched.Register(schedule.Update, func(float64) { systems.Animate(g.world) })

	g.replicas = systems.NewReplicas(g.world, replication.Env{
		Local:     replication.ObserverID(acc.ObserverID),
		Transport: g.client,
		Scheduler: g.sched,
		Registry:  replication.NewRegistry(),
		Settings:  g.settings,
		Clock:     func() float64 { return g.now },
		Log:       g.log,
	}, nil)
	g.log.Info().Str("server", acc.ServerName).Str("scene", acc.Scene).Msg("joined")
}

func (g *Game) onSpawn(ev messages.SpawnEvent) {
	if g.replicas == nil {
		return
	}
	e, err := g.replicas.Spawn(ev)
	if err != nil {
		g.log.Warn().Err(err).Uint64("object", ev.ObjectID).Msg("spawn")
		return
	}
	if ev.Kind == messages.KindCharacter && ev.Owner == g.client.Accepted().ObserverID {
		g.character = e
	}
}

func (g *Game) onDespawn(ev messages.DespawnEvent) {
	if g.replicas == nil {
		return
	}
	if e, ok := g.replicas.Find(ev.ObjectID); ok && g.character != nil && e.Entity() == g.character.Entity() {
		g.character = nil
	}
	g.replicas.Despawn(ev)
}

// Update polls the connection, applies input and advances the scheduler by
// one tick.
func (g *Game) Update() error {
	g.client.Poll()
	if g.client.State() == network.StateError {
		return g.client.LastError()
	}
	if g.sched == nil {
		return nil
	}
	g.handleInput()
	g.sched.Advance(1 / float64(ebiten.TPS()))
	processEvents(g.world)
	return nil
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.settings.Client.Width, g.settings.Client.Height
}
