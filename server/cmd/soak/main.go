// Command soak runs a server and a set of wandering in-process observers
// over a lossy hub, then reports how far each replica ended up from its
// authoritative object.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/greedyvox/netsync/capture"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/server/core"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/scenedata"
	"github.com/rs/zerolog"
)

// topNames is how many message names the bandwidth report lists.
const topNames = 10

func main() {
	configPath := flag.String("config", "", "Config file (JSON or YAML)")
	clients := flag.Int("clients", 4, "Number of autopilot observers")
	seconds := flag.Float64("seconds", 30, "Simulated seconds to run")
	drop := flag.Float64("drop", 0.05, "Probability an unreliable frame is lost")
	reorder := flag.Bool("reorder", true, "Shuffle unreliable frames within a poll")
	seed := flag.Uint64("seed", 1, "Random seed for the hub and the server")
	record := flag.Bool("capture", false, "Capture sent frames and print a bandwidth summary")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("info", true, nil)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(settings.Log.Level, settings.Log.Pretty, nil)

	if err := run(settings, log, soakOptions{
		clients: *clients,
		seconds: *seconds,
		hub:     network.HubOptions{DropRate: *drop, Reorder: *reorder, Seed: *seed},
		seed:    *seed,
		capture: *record,
	}); err != nil {
		log.Fatal().Err(err).Msg("soak failed")
	}
}

type soakOptions struct {
	clients int
	seconds float64
	hub     network.HubOptions
	seed    uint64
	capture bool
}

func run(settings config.Settings, log zerolog.Logger, opts soakOptions) error {
	layout, err := scenedata.LoadOrDefault(os.DirFS("."), settings.Server.Scene)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	var frames *capture.Writer
	if opts.capture {
		if frames, err = capture.NewWriter(&buf); err != nil {
			return err
		}
	}

	transport := core.NewLocalTransport(network.NewHub(opts.hub))
	srv, err := core.NewServer(settings, core.Options{
		Transport: transport,
		Scene:     layout,
		Capture:   frames,
		Log:       log,
		Seed:      opts.seed,
	})
	if err != nil {
		return err
	}

	peers := make([]*core.LocalClient, 0, opts.clients)
	for i := 0; i < opts.clients; i++ {
		id := replication.ObserverID(i + 1)
		c, err := core.NewLocalClient(srv, transport, id, fmt.Sprintf("soak-%d", id), settings, log)
		if err != nil {
			return err
		}
		c.Autopilot = true
		peers = append(peers, c)
	}

	dt := 1 / float64(settings.Network.FrameRate)
	frameCount := int(opts.seconds / dt)
	for f := 0; f < frameCount; f++ {
		srv.Tick(dt)
		for _, c := range peers {
			c.Step(dt)
		}
	}

	for _, c := range peers {
		reportDrift(log, srv, c)
	}

	if frames != nil {
		if err := frames.Close(); err != nil {
			return err
		}
		records, err := capture.ReadAll(&buf)
		if err != nil {
			return err
		}
		reportBandwidth(log, capture.Summarize(records), opts.seconds)
	}

	for _, c := range peers {
		c.Leave()
	}
	return nil
}

// reportDrift logs the mean and worst position error of every replica c
// holds against the server's copy of the same object.
func reportDrift(log zerolog.Logger, srv *core.Server, c *core.LocalClient) {
	var total, worst float64
	var worstLabel string
	n := 0
	for _, e := range c.Replicas().All() {
		nd := components.Network.Get(e)
		auth, ok := srv.Replicas().Find(nd.ObjectID)
		if !ok {
			continue
		}
		d := components.Pose.Get(e).Position.Sub(components.Pose.Get(auth).Position).Len()
		total += d
		n++
		if d > worst {
			worst, worstLabel = d, nd.Label
		}
	}
	if n == 0 {
		log.Warn().Uint64("observer", uint64(c.ID())).Msg("no replicas")
		return
	}
	log.Info().
		Uint64("observer", uint64(c.ID())).
		Int("replicas", n).
		Float64("meanError", total/float64(n)).
		Float64("worstError", worst).
		Str("worst", worstLabel).
		Msg("drift")
}

// reportBandwidth logs total traffic and the busiest message names.
func reportBandwidth(log zerolog.Logger, summary map[string]capture.Summary, seconds float64) {
	names := make([]string, 0, len(summary))
	var frames, size int
	for name, s := range summary {
		names = append(names, name)
		frames += s.Frames
		size += s.Bytes
	}
	sort.Slice(names, func(i, j int) bool { return summary[names[i]].Bytes > summary[names[j]].Bytes })

	log.Info().
		Int("frames", frames).
		Int("bytes", size).
		Float64("bytesPerSecond", float64(size)/seconds).
		Int("names", len(names)).
		Msg("bandwidth")
	for _, name := range names[:min(len(names), topNames)] {
		s := summary[name]
		log.Info().Str("name", name).Int("frames", s.Frames).Int("bytes", s.Bytes).Msg("busiest")
	}
}
