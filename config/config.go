package config

import (
	"errors"
	"fmt"

	"github.com/greedyvox/netsync/shared/netconfig"
)

// ErrInvalid is returned when loaded settings fail validation.
var ErrInvalid = errors.New("invalid config")

// NetworkConfig drives the tick scheduler and the interpolation step.
type NetworkConfig struct {
	SyncRateClient   float64 `mapstructure:"syncRateClient"`   // client sends per second
	SyncRateServer   float64 `mapstructure:"syncRateServer"`   // server sends per second
	FixedTimestep    float64 `mapstructure:"fixedTimestep"`    // seconds per fixed step
	FrameRate        int     `mapstructure:"frameRate"`        // render/update ticks per second
	MaxExtrapolation float64 `mapstructure:"maxExtrapolation"` // seconds of lag compensation at most
}

// TransformConfig configures character transform replication.
type TransformConfig struct {
	SynchronizeScale              bool    `mapstructure:"synchronizeScale"`
	RemoteInterpolationMultiplier float64 `mapstructure:"remoteInterpolationMultiplier"`
	Delivery                      string  `mapstructure:"delivery"`
}

// LocationConfig configures prop and rigidbody replication.
type LocationConfig struct {
	SynchronizeActiveState        bool    `mapstructure:"synchronizeActiveState"`
	SynchronizePosition           bool    `mapstructure:"synchronizePosition"`
	SynchronizeRotation           bool    `mapstructure:"synchronizeRotation"`
	SynchronizeScale              bool    `mapstructure:"synchronizeScale"`
	RemoteInterpolationMultiplier float64 `mapstructure:"remoteInterpolationMultiplier"`
	Delivery                      string  `mapstructure:"delivery"`
}

// AnimatorConfig configures animator parameter replication.
type AnimatorConfig struct {
	Delivery string `mapstructure:"delivery"`
}

// CurveKey is one keyframe of a distance curve.
type CurveKey struct {
	Time  float64 `mapstructure:"time"`
	Value float64 `mapstructure:"value"`
}

// SyncRateConfig configures distance-based send throttling.
type SyncRateConfig struct {
	DistanceSendRange   float64    `mapstructure:"distanceSendRange"`
	FixedSendsPerSecond int        `mapstructure:"fixedSendsPerSecond"`
	Curve               string     `mapstructure:"curve"` // easing name, ignored when Keys is set
	Keys                []CurveKey `mapstructure:"keys"`
	DebugLog            bool       `mapstructure:"debugLog"`
}

// ServerConfig configures the authoritative demo server.
type ServerConfig struct {
	Port    uint   `mapstructure:"port"`
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Scene   string `mapstructure:"scene"` // TMX path; empty uses the built-in scene
	NPCs    int    `mapstructure:"npcs"`
	Props   int    `mapstructure:"props"`
}

// ClientConfig configures the viewer.
type ClientConfig struct {
	Address    string  `mapstructure:"address"`
	PlayerName string  `mapstructure:"playerName"`
	Width      int     `mapstructure:"width"`
	Height     int     `mapstructure:"height"`
	Zoom       float64 `mapstructure:"zoom"` // pixels per world unit
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// CaptureConfig configures the compressed frame capture.
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Settings is the full configuration tree, passed explicitly to every
// component that needs it.
type Settings struct {
	Network   NetworkConfig   `mapstructure:"network"`
	Transform TransformConfig `mapstructure:"transform"`
	Location  LocationConfig  `mapstructure:"location"`
	Animator  AnimatorConfig  `mapstructure:"animator"`
	SyncRate  SyncRateConfig  `mapstructure:"syncRate"`
	Server    ServerConfig    `mapstructure:"server"`
	Client    ClientConfig    `mapstructure:"client"`
	Log       LogConfig       `mapstructure:"log"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

// Default returns the settings used when no config file is present.
func Default() Settings {
	return Settings{
		Network: NetworkConfig{
			SyncRateClient:   10,
			SyncRateServer:   10,
			FixedTimestep:    0.02,
			FrameRate:        60,
			MaxExtrapolation: 0.25,
		},
		Transform: TransformConfig{
			SynchronizeScale:              false,
			RemoteInterpolationMultiplier: 1.0,
			Delivery:                      netconfig.UnreliableSequenced.String(),
		},
		Location: LocationConfig{
			SynchronizeActiveState:        true,
			SynchronizePosition:           true,
			SynchronizeRotation:           true,
			SynchronizeScale:              false,
			RemoteInterpolationMultiplier: 1.0,
			Delivery:                      netconfig.UnreliableSequenced.String(),
		},
		Animator: AnimatorConfig{
			Delivery: netconfig.ReliableSequenced.String(),
		},
		SyncRate: SyncRateConfig{
			DistanceSendRange:   50,
			FixedSendsPerSecond: 20,
			Curve:               "linear",
		},
		Server: ServerConfig{
			Port:  7373,
			Name:  "netsync",
			NPCs:  3,
			Props: 4,
		},
		Client: ClientConfig{
			Address:    "localhost:7373",
			PlayerName: "viewer",
			Width:      960,
			Height:     540,
			Zoom:       8,
		},
		Log: LogConfig{
			Level: "info",
		},
		Capture: CaptureConfig{
			Dir: "./captures",
		},
	}
}

// Validate checks ranges that would otherwise break the scheduler or the
// interpolation step.
func (s Settings) Validate() error {
	n := s.Network
	if n.SyncRateClient <= 0 || n.SyncRateServer <= 0 {
		return fmt.Errorf("%w: sync rates must be positive", ErrInvalid)
	}
	if n.FixedTimestep <= 0 {
		return fmt.Errorf("%w: fixedTimestep must be positive", ErrInvalid)
	}
	if n.FrameRate <= 0 {
		return fmt.Errorf("%w: frameRate must be positive", ErrInvalid)
	}
	if n.MaxExtrapolation < 0 {
		return fmt.Errorf("%w: maxExtrapolation must not be negative", ErrInvalid)
	}
	if s.Transform.RemoteInterpolationMultiplier <= 0 || s.Location.RemoteInterpolationMultiplier <= 0 {
		return fmt.Errorf("%w: remoteInterpolationMultiplier must be positive", ErrInvalid)
	}
	for _, d := range []string{s.Transform.Delivery, s.Location.Delivery, s.Animator.Delivery} {
		if _, err := netconfig.ParseDelivery(d); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	r := s.SyncRate
	if r.DistanceSendRange <= 0 {
		return fmt.Errorf("%w: distanceSendRange must be positive", ErrInvalid)
	}
	if r.FixedSendsPerSecond < 1 || r.FixedSendsPerSecond > 100 {
		return fmt.Errorf("%w: fixedSendsPerSecond must be within 1..100", ErrInvalid)
	}
	return nil
}

// TransformDelivery returns the parsed transform delivery mode.
func (s Settings) TransformDelivery() netconfig.Delivery {
	d, _ := netconfig.ParseDelivery(s.Transform.Delivery)
	return d
}

// LocationDelivery returns the parsed location delivery mode.
func (s Settings) LocationDelivery() netconfig.Delivery {
	d, _ := netconfig.ParseDelivery(s.Location.Delivery)
	return d
}

// AnimatorDelivery returns the parsed animator delivery mode.
func (s Settings) AnimatorDelivery() netconfig.Delivery {
	d, _ := netconfig.ParseDelivery(s.Animator.Delivery)
	return d
}
