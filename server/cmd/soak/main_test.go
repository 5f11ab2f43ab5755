package main

import (
	"testing"

	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRunCompletesWithLossyHub(t *testing.T) {
	err := run(config.Default(), zerolog.Nop(), soakOptions{
		clients: 2,
		seconds: 2,
		hub:     network.HubOptions{DropRate: 0.2, Reorder: true, Seed: 3},
		seed:    3,
		capture: true,
	})
	require.NoError(t, err)
}
