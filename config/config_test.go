package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `{
		"network": { "syncRateClient": 20, "maxExtrapolation": 0.1 },
		"syncRate": { "distanceSendRange": 80, "keys": [ {"time": 0, "value": 0}, {"time": 1, "value": 0.8} ] },
		"transform": { "synchronizeScale": true, "delivery": "reliableSequenced" },
		"log": { "level": "debug" }
	}`
	path := filepath.Join(dir, "netsync.json")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20.0, s.Network.SyncRateClient)
	assert.Equal(t, 10.0, s.Network.SyncRateServer)
	assert.Equal(t, 0.1, s.Network.MaxExtrapolation)
	assert.Equal(t, 80.0, s.SyncRate.DistanceSendRange)
	require.Len(t, s.SyncRate.Keys, 2)
	assert.Equal(t, 0.8, s.SyncRate.Keys[1].Value)
	assert.True(t, s.Transform.SynchronizeScale)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoad_DefaultValues(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/netsync.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NETSYNC_SERVER_PORT", "9000")
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint(9000), s.Server.Port)
}

func TestValidate(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	s.SyncRate.FixedSendsPerSecond = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = Default()
	s.Network.SyncRateClient = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = Default()
	s.Animator.Delivery = "sometimes"
	assert.ErrorIs(t, s.Validate(), ErrInvalid)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netsync.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"syncRate": {"fixedSendsPerSecond": 500}}`), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}
