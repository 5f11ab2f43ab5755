package replication

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/protocol"
	"github.com/greedyvox/netsync/shared/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locationName(owner ObserverID, dir protocol.Direction, kind protocol.Kind) string {
	return protocol.Name(uint64(owner), dir, kind, testObject)
}

func decodeLocation(t *testing.T, b []byte) LocationFrame {
	t.Helper()
	f, err := UnmarshalLocationFrame(b)
	require.NoError(t, err)
	return f
}

func newServerProp(t *testing.T, prop *fakeProp, observers staticObservers) (*harness, *LocationMonitor) {
	t.Helper()
	h := newHarness(t, ServerID)
	m, err := NewLocationMonitor(h.env, Identity{ObjectID: testObject, Owner: ServerID}, prop, observers)
	require.NoError(t, err)
	m.Spawn()
	return h, m
}

func TestLocationSpawnSendsReliableBaselines(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{1, 2, 3}, &fakeBody{vel: mgl64.Vec3{0, -1, 0}})
	h, _ := newServerProp(t, prop, staticObservers{{ID: 4}, {ID: 5}})

	frames := h.transport.named(locationName(ServerID, protocol.ToClient, protocol.KindLocation))
	require.Len(t, frames, 2)
	for _, sent := range frames {
		assert.Equal(t, netconfig.Reliable, sent.delivery)
		f := decodeLocation(t, sent.payload)
		assert.Equal(t, netconfig.LocationPosition|netconfig.LocationRigidbodyVelocity|
			netconfig.LocationRotation|netconfig.LocationRigidbodyAngularVelocity, f.Mask)
		assert.Equal(t, mgl32.Vec3{1, 2, 3}, f.Position)
		assert.Equal(t, mgl32.Vec3{0, -1, 0}, f.BodyVelocity)
	}
	assert.Len(t, h.transport.named(locationName(ServerID, protocol.ToClient, protocol.KindLocationActive)), 2)
}

func TestLocationServerThrottlesByDistance(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{}, nil)
	observers := staticObservers{
		{ID: 1, Position: mgl64.Vec3{1, 0, 0}},
		{ID: 2, Position: mgl64.Vec3{40, 0, 0}},
		{ID: 3, Position: mgl64.Vec3{400, 0, 0}},
	}
	h, _ := newServerProp(t, prop, observers)
	h.transport.sent = nil
	name := locationName(ServerID, protocol.ToClient, protocol.KindLocation)

	counts := map[ObserverID]int{}
	for i := 0; i < 120; i++ {
		prop.SetPosition(mgl64.Vec3{0, float64(i) * 0.01, 0})
		h.step(1.0 / 60)
	}
	for _, sent := range h.transport.named(name) {
		assert.Equal(t, netconfig.UnreliableSequenced, sent.delivery)
		for _, id := range sent.to {
			counts[id]++
		}
	}
	assert.Greater(t, counts[1], counts[2])
	assert.Greater(t, counts[2], 0)
	assert.Zero(t, counts[3])
}

func TestLocationServerKeepsPerObserverDeltas(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{}, nil)
	observers := staticObservers{{ID: 1}, {ID: 2, Position: mgl64.Vec3{45, 0, 0}}}
	h, m := newServerProp(t, prop, observers)
	h.transport.sent = nil
	name := locationName(ServerID, protocol.ToClient, protocol.KindLocation)
	require.NotNil(t, m.SyncRate())

	// first Advance registers both observers
	h.step(0.01)
	prop.SetPosition(mgl64.Vec3{5, 0, 0})
	h.step(0.1)
	require.Len(t, h.transport.named(name), 1)
	assert.Equal(t, []ObserverID{1}, h.transport.last().to)

	// observer 2 is due later and still gets the move
	for i := 0; i < 100; i++ {
		h.step(0.01)
	}
	var to2 []LocationFrame
	for _, sent := range h.transport.named(name) {
		for _, id := range sent.to {
			if id == 2 {
				to2 = append(to2, decodeLocation(t, sent.payload))
			}
		}
	}
	require.NotEmpty(t, to2)
	assert.Equal(t, netconfig.LocationPosition, to2[0].Mask)
	assert.Equal(t, mgl32.Vec3{5, 0, 0}, to2[0].Position)
}

func TestLocationObserverConnectGetsBaseline(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{7, 0, 0}, nil)
	h, m := newServerProp(t, prop, nil)
	assert.Empty(t, h.transport.sent)

	m.OnObserverConnected(6)
	frames := h.transport.named(locationName(ServerID, protocol.ToClient, protocol.KindLocation))
	require.Len(t, frames, 1)
	assert.Equal(t, []ObserverID{6}, frames[0].to)
	assert.Equal(t, netconfig.Reliable, frames[0].delivery)

	m.OnObserverDisconnected(6)
	assert.NotContains(t, m.links, ObserverID(6))
}

func TestLocationReceiverRigidbody(t *testing.T) {
	h := newHarness(t, 2)
	body := &fakeBody{}
	prop := newFakeProp(mgl64.Vec3{}, body)
	m, err := NewLocationMonitor(h.env, Identity{ObjectID: testObject, Owner: ServerID}, prop, nil)
	require.NoError(t, err)
	m.Spawn()
	assert.Equal(t, 1, h.sched.Count(schedule.FixedUpdate), "rigidbodies interpolate in the fixed phase")

	b, err := LocationFrame{
		Mask:         netconfig.LocationPosition | netconfig.LocationRigidbodyVelocity,
		Position:     mgl32.Vec3{3, 0, 0},
		BodyVelocity: mgl32.Vec3{1, 0, 0},
	}.Marshal()
	require.NoError(t, err)
	h.transport.deliver(ServerID, locationName(ServerID, protocol.ToClient, protocol.KindLocation), b)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, body.vel)

	h.step(0.02)
	assert.Equal(t, mgl64.Vec3{3, 0, 0}, prop.pose.Position)
}

func TestLocationActiveState(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{}, nil)
	h, m := newServerProp(t, prop, nil)

	require.NoError(t, m.SetActive(false))
	assert.False(t, prop.active)
	sent := h.transport.last()
	assert.True(t, sent.all)
	assert.Equal(t, netconfig.Reliable, sent.delivery)
	r := wire.NewReader(sent.payload)
	assert.False(t, r.Bool())
	assert.NoError(t, r.Done())

	// a client receiving it
	hc := newHarness(t, 3)
	remote := newFakeProp(mgl64.Vec3{}, nil)
	mc, err := NewLocationMonitor(hc.env, Identity{ObjectID: testObject, Owner: ServerID}, remote, nil)
	require.NoError(t, err)
	mc.Spawn()
	hc.transport.deliver(ServerID, sent.name, sent.payload)
	assert.False(t, remote.active)

	mc.Despawn()
	assert.ErrorIs(t, mc.SetActive(true), ErrNotSpawned)
}

func TestLocationOwnerClientActiveIsRelayed(t *testing.T) {
	h := newHarness(t, ServerID)
	prop := newFakeProp(mgl64.Vec3{}, nil)
	m, err := NewLocationMonitor(h.env, Identity{ObjectID: testObject, Owner: testOwner}, prop, staticObservers{{ID: testOwner}, {ID: 8}})
	require.NoError(t, err)
	m.Spawn()
	h.transport.sent = nil

	w := wire.NewWriter()
	w.Bool(false)
	payload, err := w.Bytes()
	require.NoError(t, err)

	h.transport.deliver(8, locationName(testOwner, protocol.ToServer, protocol.KindLocationActive), payload)
	assert.True(t, prop.active, "only the owner may change it")

	h.transport.deliver(testOwner, locationName(testOwner, protocol.ToServer, protocol.KindLocationActive), payload)
	assert.False(t, prop.active)
	sent := h.transport.last()
	assert.Equal(t, []ObserverID{testOwner}, sent.except)
	assert.Equal(t, locationName(testOwner, protocol.ToClient, protocol.KindLocationActive), sent.name)
}

func TestLocationTeleportSnapsObservers(t *testing.T) {
	prop := newFakeProp(mgl64.Vec3{}, nil)
	h, m := newServerProp(t, prop, staticObservers{{ID: 4, Position: mgl64.Vec3{1, 0, 0}}})
	h.transport.sent = nil

	prop.SetPosition(mgl64.Vec3{0, 5, -12})
	m.OnImmediateTransformChange()
	snaps := h.transport.named(locationName(ServerID, protocol.ToClient, protocol.KindLocationSnap))
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].all)
	assert.Empty(t, snaps[0].except)
	assert.Equal(t, netconfig.Reliable, snaps[0].delivery)
	f, err := UnmarshalSnapFrame(snaps[0].payload)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, 5, -12}, f.Position)

	// the observer's link already holds the new pose
	for i := 0; i < 10; i++ {
		h.step(0.1)
	}
	assert.Empty(t, h.transport.named(locationName(ServerID, protocol.ToClient, protocol.KindLocation)))

	rh := newHarness(t, 4)
	remote := newFakeProp(mgl64.Vec3{}, nil)
	rm, err := NewLocationMonitor(rh.env, Identity{ObjectID: testObject, Owner: ServerID}, remote, nil)
	require.NoError(t, err)
	rm.Spawn()
	rh.transport.deliver(ServerID, locationName(ServerID, protocol.ToClient, protocol.KindLocationSnap), snaps[0].payload)
	assert.Equal(t, mgl64.Vec3{0, 5, -12}, remote.pose.Position)
	rh.step(0.02)
	assert.Equal(t, mgl64.Vec3{0, 5, -12}, remote.pose.Position)
}
