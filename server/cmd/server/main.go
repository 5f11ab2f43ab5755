package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/greedyvox/netsync/capture"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/server/core"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/scenedata"
)

func main() {
	configPath := flag.String("config", "", "Config file (JSON or YAML)")
	port := flag.Uint("port", 0, "Server port (overrides config)")
	name := flag.String("name", "", "Server display name (overrides config)")
	scene := flag.String("scene", "", "Scene TMX file (overrides config)")
	npcs := flag.Int("npcs", -1, "Number of wandering NPCs (overrides config)")
	captureDir := flag.String("capture", "", "Write a compressed frame capture to this directory")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("info", true, nil)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	if *port != 0 {
		settings.Server.Port = *port
	}
	if *name != "" {
		settings.Server.Name = *name
	}
	if *scene != "" {
		settings.Server.Scene = *scene
	}
	if *npcs >= 0 {
		settings.Server.NPCs = *npcs
	}
	if *captureDir != "" {
		settings.Capture.Enabled = true
		settings.Capture.Dir = *captureDir
	}

	log := logging.New(settings.Log.Level, settings.Log.Pretty, nil)

	layout, err := scenedata.LoadOrDefault(os.DirFS("."), settings.Server.Scene)
	if err != nil {
		log.Fatal().Err(err).Msg("load scene")
	}

	metrics, err := replication.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("create metrics")
	}

	var frames *capture.Writer
	if settings.Capture.Enabled {
		w, path, err := capture.Create(settings.Capture.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("create capture")
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Error().Err(err).Msg("close capture")
			}
			log.Info().Str("path", path).Int("frames", w.Count()).Msg("capture written")
		}()
		frames = w
	}

	transport := network.NewServerTransport(log)
	srv, err := core.NewServer(settings, core.Options{
		Transport: transport,
		Scene:     layout,
		Capture:   frames,
		Metrics:   metrics,
		Log:       log,
		Seed:      uint64(os.Getpid()),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create server")
	}
	transport.OnJoin = srv.Join
	transport.OnJoined = srv.Joined
	transport.OnLeave = srv.Leave

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("name", settings.Server.Name).
			Uint("port", settings.Server.Port).
			Str("scene", layout.Name).
			Msg("starting server")
		if err := transport.Start(settings.Server.Port); err != nil {
			log.Error().Err(err).Msg("transport stopped")
			stop()
		}
	}()

	srv.Run(ctx)
	log.Info().Msg("shutting down server")
}
