package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NETSYNC_NETWORK_SYNCRATECLIENT.
const EnvPrefix = "NETSYNC"

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("network.syncRateClient", d.Network.SyncRateClient)
	v.SetDefault("network.syncRateServer", d.Network.SyncRateServer)
	v.SetDefault("network.fixedTimestep", d.Network.FixedTimestep)
	v.SetDefault("network.frameRate", d.Network.FrameRate)
	v.SetDefault("network.maxExtrapolation", d.Network.MaxExtrapolation)

	v.SetDefault("transform.synchronizeScale", d.Transform.SynchronizeScale)
	v.SetDefault("transform.remoteInterpolationMultiplier", d.Transform.RemoteInterpolationMultiplier)
	v.SetDefault("transform.delivery", d.Transform.Delivery)

	v.SetDefault("location.synchronizeActiveState", d.Location.SynchronizeActiveState)
	v.SetDefault("location.synchronizePosition", d.Location.SynchronizePosition)
	v.SetDefault("location.synchronizeRotation", d.Location.SynchronizeRotation)
	v.SetDefault("location.synchronizeScale", d.Location.SynchronizeScale)
	v.SetDefault("location.remoteInterpolationMultiplier", d.Location.RemoteInterpolationMultiplier)
	v.SetDefault("location.delivery", d.Location.Delivery)

	v.SetDefault("animator.delivery", d.Animator.Delivery)

	v.SetDefault("syncRate.distanceSendRange", d.SyncRate.DistanceSendRange)
	v.SetDefault("syncRate.fixedSendsPerSecond", d.SyncRate.FixedSendsPerSecond)
	v.SetDefault("syncRate.curve", d.SyncRate.Curve)
	v.SetDefault("syncRate.debugLog", d.SyncRate.DebugLog)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.version", d.Server.Version)
	v.SetDefault("server.scene", d.Server.Scene)
	v.SetDefault("server.npcs", d.Server.NPCs)
	v.SetDefault("server.props", d.Server.Props)

	v.SetDefault("client.address", d.Client.Address)
	v.SetDefault("client.playerName", d.Client.PlayerName)
	v.SetDefault("client.width", d.Client.Width)
	v.SetDefault("client.height", d.Client.Height)
	v.SetDefault("client.zoom", d.Client.Zoom)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("capture.enabled", d.Capture.Enabled)
	v.SetDefault("capture.dir", d.Capture.Dir)
}

// Load reads settings from path (JSON or YAML, by extension) on top of the
// defaults, then applies NETSYNC_* environment overrides. An empty path
// skips the file.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
