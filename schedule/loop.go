package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Loop drives a Scheduler from a wall-clock ticker.
type Loop struct {
	sched     *Scheduler
	frameRate int
	before    func()
	log       zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop ticking frameRate times per second. before runs at
// the start of every frame, ahead of the scheduler phases; hosts drain their
// inbound network queue there.
func NewLoop(sched *Scheduler, frameRate int, before func(), log zerolog.Logger) *Loop {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Loop{
		sched:     sched,
		frameRate: frameRate,
		before:    before,
		log:       log,
		stopChan:  make(chan struct{}),
	}
}

// Run blocks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(l.frameRate))
	defer ticker.Stop()

	l.log.Info().Int("frameRate", l.frameRate).Msg("loop started")

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("loop stopped")
			return
		case <-l.stopChan:
			l.log.Info().Msg("loop stopped")
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			l.Tick(dt)
		}
	}
}

// Stop ends Run. It may be called more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

// Tick runs one frame of dt seconds.
func (l *Loop) Tick(dt float64) {
	if l.before != nil {
		l.before()
	}
	l.sched.Advance(dt)
}
