package main

import (
	"flag"

	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/viewer"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	configPath := flag.String("config", "", "Config file (JSON or YAML)")
	address := flag.String("addr", "", "Server address host:port (overrides config)")
	name := flag.String("name", "", "Player name (overrides config)")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("info", true, nil)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	if *address != "" {
		settings.Client.Address = *address
	}
	if *name != "" {
		settings.Client.PlayerName = *name
	}
	log := logging.New(settings.Log.Level, settings.Log.Pretty, nil)

	game, err := viewer.NewGame(settings, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create viewer")
	}
	game.Connect()
	defer game.Close()

	ebiten.SetWindowSize(settings.Client.Width, settings.Client.Height)
	ebiten.SetWindowTitle("netsync - " + settings.Client.PlayerName)
	ebiten.SetTPS(settings.Network.FrameRate)

	if err := ebiten.RunGame(game); err != nil {
		log.Error().Err(err).Msg("viewer stopped")
	}
}
