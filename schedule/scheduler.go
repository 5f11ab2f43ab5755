// Package schedule drives per-phase callbacks from a single frame clock. It
// replaces free-running coroutines: every monitor registers the phases it
// needs and unregisters them on despawn.
package schedule

// Phase selects when a callback runs within a frame.
type Phase int

const (
	// FixedUpdate runs zero or more times per frame at the fixed timestep.
	FixedUpdate Phase = iota
	// Update runs once per frame with the frame delta.
	Update
	// ClientSync runs at the client send rate.
	ClientSync
	// ServerSync runs at the server send rate.
	ServerSync
)

func (p Phase) String() string {
	switch p {
	case FixedUpdate:
		return "fixedUpdate"
	case Update:
		return "update"
	case ClientSync:
		return "clientSync"
	case ServerSync:
		return "serverSync"
	}
	return "unknown"
}

// Func receives the time step of its phase in seconds.
type Func func(dt float64)

// Handle identifies a registration. The zero Handle is never issued.
type Handle uint64

// Rates configures phase frequencies.
type Rates struct {
	ClientHz      float64
	ServerHz      float64
	FixedTimestep float64
}

type entry struct {
	handle Handle
	phase  Phase
	fn     Func
	active bool
}

// Scheduler is not safe for concurrent use; it is owned by the loop goroutine.
type Scheduler struct {
	rates   Rates
	entries []*entry
	next    Handle

	fixedAcc     float64
	clientAcc    float64
	serverAcc    float64
	maxFixedRuns int
}

func New(rates Rates) *Scheduler {
	return &Scheduler{
		rates:        rates,
		maxFixedRuns: 8,
	}
}

// Rates returns the configured phase frequencies.
func (s *Scheduler) Rates() Rates { return s.rates }

// Register adds fn to phase. Callbacks of a phase run in registration order.
func (s *Scheduler) Register(phase Phase, fn Func) Handle {
	s.next++
	s.entries = append(s.entries, &entry{handle: s.next, phase: phase, fn: fn, active: true})
	return s.next
}

// Unregister removes a registration. It is safe to call from inside a
// callback and with handles that were already removed.
func (s *Scheduler) Unregister(h Handle) {
	for i, e := range s.entries {
		if e.handle == h {
			e.active = false
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// Len reports the number of live registrations.
func (s *Scheduler) Len() int { return len(s.entries) }

// Count reports the live registrations of one phase.
func (s *Scheduler) Count(phase Phase) int {
	n := 0
	for _, e := range s.entries {
		if e.phase == phase {
			n++
		}
	}
	return n
}

// Advance runs one frame of dt seconds: fixed steps, then the update phase,
// then the client and server send phases when their interval has elapsed.
func (s *Scheduler) Advance(dt float64) {
	if dt < 0 {
		dt = 0
	}

	if step := s.rates.FixedTimestep; step > 0 {
		s.fixedAcc += dt
		runs := 0
		for s.fixedAcc >= step && runs < s.maxFixedRuns {
			s.fixedAcc -= step
			s.run(FixedUpdate, step)
			runs++
		}
		if runs == s.maxFixedRuns {
			// spiral of death: drop the backlog
			s.fixedAcc = 0
		}
	}

	s.run(Update, dt)

	s.clientAcc = s.tickRated(ClientSync, s.rates.ClientHz, s.clientAcc+dt)
	s.serverAcc = s.tickRated(ServerSync, s.rates.ServerHz, s.serverAcc+dt)
}

func (s *Scheduler) tickRated(phase Phase, hz, acc float64) float64 {
	if hz <= 0 {
		return 0
	}
	interval := 1 / hz
	if acc+1e-9 < interval {
		return acc
	}
	s.run(phase, interval)
	acc -= interval
	if acc >= interval {
		acc = 0
	}
	return acc
}

func (s *Scheduler) run(phase Phase, dt float64) {
	snapshot := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.phase == phase {
			snapshot = append(snapshot, e)
		}
	}
	for _, e := range snapshot {
		if e.active {
			e.fn(dt)
		}
	}
}
