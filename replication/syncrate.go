package replication

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/config"
	"github.com/rs/zerolog"
)

// Observer is a connected peer and the position it observes from.
type Observer struct {
	ID       ObserverID
	Position mgl64.Vec3
}

// SyncRate decides, per observer, whether an entity is due for a send. Near
// observers are served up to FixedSendsPerSecond times a second; the rate
// falls off along the distance curve and stops at DistanceSendRange.
type SyncRate struct {
	curve       Curve
	maxRange    float64
	minInterval float64
	elapsed     map[ObserverID]float64
	subs        map[int]func([]ObserverID)
	nextSub     int
	debug       bool
	log         zerolog.Logger
}

func NewSyncRate(cfg config.SyncRateConfig, log zerolog.Logger) (*SyncRate, error) {
	curve, err := NewCurve(cfg)
	if err != nil {
		return nil, err
	}
	sends := cfg.FixedSendsPerSecond
	if sends < 1 {
		sends = 1
	}
	return &SyncRate{
		curve:       curve,
		maxRange:    cfg.DistanceSendRange,
		minInterval: 1 / float64(sends),
		elapsed:     make(map[ObserverID]float64),
		subs:        make(map[int]func([]ObserverID)),
		debug:       cfg.DebugLog,
		log:         log,
	}, nil
}

// Interval returns the send interval in seconds for an observer at
// distance. Values of 1 or more mean never.
func (s *SyncRate) Interval(distance float64) float64 {
	if s.maxRange <= 0 {
		return 1
	}
	n := distance / s.maxRange
	if n > 1 {
		return 1
	}
	interval := s.curve.Evaluate(n)
	if interval < s.minInterval {
		interval = s.minInterval
	}
	return interval
}

// Advance accumulates dt for every observer and returns those due a send
// this tick. Observers seen for the first time are registered and wait a
// tick. The server's own id is skipped, and observers missing from the list
// are forgotten.
func (s *SyncRate) Advance(dt float64, self mgl64.Vec3, observers []Observer) []ObserverID {
	var due []ObserverID
	seen := make(map[ObserverID]struct{}, len(observers))
	for _, o := range observers {
		if o.ID == ServerID {
			continue
		}
		seen[o.ID] = struct{}{}
		elapsed, ok := s.elapsed[o.ID]
		if !ok {
			s.elapsed[o.ID] = 0
			continue
		}
		elapsed += dt
		distance := o.Position.Sub(self).Len()
		interval := s.Interval(distance)
		if elapsed > interval && interval < 1 {
			due = append(due, o.ID)
			elapsed = 0
			if s.debug {
				s.log.Debug().Uint64("observer", uint64(o.ID)).
					Float64("distance", distance).
					Float64("interval", interval).
					Msg("observer due")
			}
		}
		s.elapsed[o.ID] = elapsed
	}
	for id := range s.elapsed {
		if _, ok := seen[id]; !ok {
			delete(s.elapsed, id)
		}
	}
	if len(due) > 0 {
		for _, fn := range s.subs {
			fn(due)
		}
	}
	return due
}

// Forget drops an observer's entry.
func (s *SyncRate) Forget(id ObserverID) {
	delete(s.elapsed, id)
}

// Tracking reports whether an observer has an entry.
func (s *SyncRate) Tracking(id ObserverID) bool {
	_, ok := s.elapsed[id]
	return ok
}

// Subscribe registers fn to receive each non-empty due list. The returned
// function removes it.
func (s *SyncRate) Subscribe(fn func([]ObserverID)) (unsubscribe func()) {
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}
