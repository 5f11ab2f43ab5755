package replication

import (
	"github.com/greedyvox/netsync/schedule"
	"github.com/rs/zerolog"
)

// lifecycle owns a monitor's scheduler and transport registrations so that
// Despawn can release all of them, and guards every callback against
// running after teardown.
type lifecycle struct {
	env     Env
	log     zerolog.Logger
	spawned bool
	handles []schedule.Handle
	names   []string
}

func (l *lifecycle) every(phase schedule.Phase, fn schedule.Func) {
	h := l.env.Scheduler.Register(phase, func(dt float64) {
		if !l.spawned {
			staleCallback(l.log, phase.String())
			return
		}
		fn(dt)
	})
	l.handles = append(l.handles, h)
}

func (l *lifecycle) on(name string, h Handler) {
	l.env.Transport.Handle(name, func(from ObserverID, payload []byte) {
		if !l.spawned {
			staleCallback(l.log, name)
			return
		}
		h(from, payload)
	})
	l.names = append(l.names, name)
}

// teardown unregisters scheduler callbacks first, then network handlers.
func (l *lifecycle) teardown() {
	for _, h := range l.handles {
		l.env.Scheduler.Unregister(h)
	}
	for _, n := range l.names {
		l.env.Transport.Unhandle(n)
	}
	l.handles = nil
	l.names = nil
	l.spawned = false
}
