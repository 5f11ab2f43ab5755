package replication

import (
	"fmt"
	"sort"
	"strings"

	"github.com/greedyvox/netsync/config"
	"github.com/tanema/gween/ease"
)

// Curve maps a normalized distance in [0, 1] to a send delay in seconds.
// Implementations are non-decreasing.
type Curve interface {
	Evaluate(t float64) float64
}

// KeyframeCurve interpolates linearly between keys and clamps outside them.
type KeyframeCurve []config.CurveKey

func (c KeyframeCurve) Evaluate(t float64) float64 {
	if len(c) == 0 {
		return t
	}
	if t <= c[0].Time {
		return c[0].Value
	}
	last := c[len(c)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].Time >= t })
	a, b := c[i-1], c[i]
	if b.Time == a.Time {
		return b.Value
	}
	u := (t - a.Time) / (b.Time - a.Time)
	return a.Value + (b.Value-a.Value)*u
}

// EaseCurve evaluates a gween easing over the unit interval.
type EaseCurve struct {
	fn ease.TweenFunc
}

func (c EaseCurve) Evaluate(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return float64(c.fn(float32(t), 0, 1, 1))
}

// Only easings that never decrease over [0, 1] are accepted.
var monotoneEasings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inquad":     ease.InQuad,
	"outquad":    ease.OutQuad,
	"inoutquad":  ease.InOutQuad,
	"incubic":    ease.InCubic,
	"outcubic":   ease.OutCubic,
	"inoutcubic": ease.InOutCubic,
	"insine":     ease.InSine,
	"outsine":    ease.OutSine,
	"inoutsine":  ease.InOutSine,
}

// NewCurve builds the distance curve from config. Keys take precedence over
// the easing name; they are sorted by time and must be non-decreasing.
func NewCurve(cfg config.SyncRateConfig) (Curve, error) {
	if len(cfg.Keys) > 0 {
		keys := make(KeyframeCurve, len(cfg.Keys))
		copy(keys, cfg.Keys)
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].Time < keys[j].Time })
		for i := 1; i < len(keys); i++ {
			if keys[i].Value < keys[i-1].Value {
				return nil, fmt.Errorf("%w: distance curve decreases at t=%g", config.ErrInvalid, keys[i].Time)
			}
		}
		return keys, nil
	}
	name := cfg.Curve
	if name == "" {
		name = "linear"
	}
	fn, ok := monotoneEasings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown distance curve %q", config.ErrInvalid, cfg.Curve)
	}
	return EaseCurve{fn: fn}, nil
}
