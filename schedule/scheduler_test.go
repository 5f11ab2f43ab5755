package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() Rates {
	return Rates{ClientHz: 10, ServerHz: 5, FixedTimestep: 0.02}
}

func TestAdvanceRunsPhasesAtTheirRates(t *testing.T) {
	s := New(testRates())
	counts := map[Phase]int{}
	for _, p := range []Phase{FixedUpdate, Update, ClientSync, ServerSync} {
		p := p
		s.Register(p, func(float64) { counts[p]++ })
	}

	for i := 0; i < 60; i++ {
		s.Advance(1.0 / 60)
	}

	assert.Equal(t, 60, counts[Update])
	assert.InDelta(t, 50, counts[FixedUpdate], 1)
	assert.InDelta(t, 10, counts[ClientSync], 1)
	assert.InDelta(t, 5, counts[ServerSync], 1)
}

func TestFrameOrder(t *testing.T) {
	s := New(Rates{ClientHz: 1000, ServerHz: 1000, FixedTimestep: 0.001})
	var order []Phase
	for _, p := range []Phase{ServerSync, Update, ClientSync, FixedUpdate} {
		p := p
		s.Register(p, func(float64) {
			if len(order) == 0 || order[len(order)-1] != p {
				order = append(order, p)
			}
		})
	}
	s.Advance(0.001)
	assert.Equal(t, []Phase{FixedUpdate, Update, ClientSync, ServerSync}, order)
}

func TestFixedStepReceivesTimestep(t *testing.T) {
	s := New(testRates())
	var got []float64
	s.Register(FixedUpdate, func(dt float64) { got = append(got, dt) })
	s.Advance(0.05)
	assert.Equal(t, []float64{0.02, 0.02}, got)
}

func TestUnregisterStopsCallbacks(t *testing.T) {
	s := New(testRates())
	n := 0
	h := s.Register(Update, func(float64) { n++ })
	s.Advance(0.01)
	s.Unregister(h)
	s.Unregister(h)
	s.Advance(0.01)
	assert.Equal(t, 1, n)
	assert.Zero(t, s.Len())
}

func TestUnregisterDuringCallback(t *testing.T) {
	s := New(testRates())
	var second Handle
	calls := 0
	s.Register(Update, func(float64) {
		calls++
		s.Unregister(second)
	})
	second = s.Register(Update, func(float64) { t.Fatal("unregistered callback ran") })
	s.Advance(0.01)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Count(Update))
}

func TestRegisterDuringCallbackRunsNextFrame(t *testing.T) {
	s := New(testRates())
	late := 0
	s.Register(Update, func(float64) {
		if late == 0 {
			s.Register(Update, func(float64) { late++ })
		}
	})
	s.Advance(0.01)
	assert.Zero(t, late)
	s.Advance(0.01)
	assert.Equal(t, 1, late)
}

func TestLoopTickRunsBeforeHook(t *testing.T) {
	s := New(testRates())
	var order []string
	s.Register(Update, func(float64) { order = append(order, "update") })
	l := NewLoop(s, 60, func() { order = append(order, "drain") }, zerolog.Nop())
	l.Tick(0.016)
	assert.Equal(t, []string{"drain", "update"}, order)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	s := New(testRates())
	ticks := make(chan struct{}, 100)
	s.Register(Update, func(float64) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	l := NewLoop(s, 200, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ticked")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "loop did not stop")
	}
	l.Stop()
}
