package replication

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/protocol"
	"github.com/greedyvox/netsync/shared/wire"
	"github.com/rs/zerolog"
)

const kindLocation = "location"

// ObserverSource lists the peers a server-side monitor fans out to.
type ObserverSource interface {
	Observers() []Observer
}

// locationLink is the authority's view of what one observer has received.
type locationLink struct {
	pos    Tracked[mgl64.Vec3]
	rot    Tracked[mgl64.Quat]
	scale  Tracked[mgl64.Vec3]
	vel    Tracked[mgl64.Vec3]
	angVel Tracked[mgl64.Vec3]

	velOrigin mgl64.Vec3
	velTime   float64
	velValid  bool
	moving    bool
}

func (l *locationLink) velocity(pos mgl64.Vec3, now float64) mgl64.Vec3 {
	elapsed := now - l.velTime
	if !l.velValid || elapsed <= 0 {
		return mgl64.Vec3{}
	}
	return pos.Sub(l.velOrigin).Mul(1 / elapsed)
}

// LocationMonitor replicates props and rigidbodies. The server throttles
// each observer by distance through a SyncRate, so it keeps what each
// observer last received separately.
type LocationMonitor struct {
	env       Env
	id        Identity
	host      LocationHost
	opts      config.LocationConfig
	delivery  netconfig.Delivery
	observers ObserverSource
	log       zerolog.Logger
	tick      zerolog.Logger
	life      lifecycle

	msgServer       string
	msgClient       string
	msgActiveServer string
	msgActiveClient string
	msgSnapServer   string
	msgSnapClient   string

	rate        *SyncRate
	unsubscribe func()
	links       map[ObserverID]*locationLink

	interp *Interpolator
}

// NewLocationMonitor builds a monitor for host. observers is only consulted
// on the server and may be nil elsewhere.
func NewLocationMonitor(env Env, id Identity, host LocationHost, observers ObserverSource) (*LocationMonitor, error) {
	m := &LocationMonitor{
		env:       env,
		id:        id,
		host:      host,
		opts:      env.Settings.Location,
		delivery:  env.Settings.LocationDelivery(),
		observers: observers,
		log: logging.Component(env.Log, "location").With().
			Uint64("object", id.ObjectID).
			Logger(),
		links: make(map[ObserverID]*locationLink),

		msgServer:       protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindLocation, id.ObjectID),
		msgClient:       protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindLocation, id.ObjectID),
		msgActiveServer: protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindLocationActive, id.ObjectID),
		msgActiveClient: protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindLocationActive, id.ObjectID),
		msgSnapServer:   protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindLocationSnap, id.ObjectID),
		msgSnapClient:   protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindLocationSnap, id.ObjectID),
	}
	m.tick = logging.Sampled(m.log)
	m.life = lifecycle{env: env, log: m.tick}
	if env.IsServer {
		rate, err := NewSyncRate(env.Settings.SyncRate, m.tick)
		if err != nil {
			return nil, err
		}
		m.rate = rate
	}
	return m, nil
}

func (m *LocationMonitor) Spawn() {
	if m.life.spawned {
		return
	}
	m.life.spawned = true
	owner := m.env.isOwner(m.id)
	pose := m.host.Pose()
	m.interp = NewInterpolator(Sample{pose.Position, pose.Rotation}, m.env.Settings.Network.MaxExtrapolation)

	switch {
	case m.env.IsServer:
		m.life.every(schedule.Update, m.advanceRate)
		m.unsubscribe = m.rate.Subscribe(m.serverSend)
	case owner:
		m.life.every(schedule.ClientSync, m.clientSync)
	}

	if !owner {
		phase := schedule.Update
		if m.host.Rigidbody() != nil {
			phase = schedule.FixedUpdate
		}
		m.life.every(phase, m.render)
		if m.env.IsServer {
			m.life.on(m.msgServer, m.onFrame)
			m.life.on(m.msgActiveServer, m.onActive)
			m.life.on(m.msgSnapServer, m.onSnap)
		} else {
			m.life.on(m.msgClient, m.onFrame)
			m.life.on(m.msgActiveClient, m.onActive)
			m.life.on(m.msgSnapClient, m.onSnap)
		}
	}

	if m.env.IsServer && m.observers != nil {
		for _, o := range m.observers.Observers() {
			m.OnObserverConnected(o.ID)
		}
	}
	m.log.Debug().Bool("server", m.env.IsServer).Bool("owner", owner).Msg("spawned")
}

func (m *LocationMonitor) Despawn() {
	if !m.life.spawned {
		return
	}
	m.life.teardown()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.links = make(map[ObserverID]*locationLink)
	m.log.Debug().Msg("despawned")
}

func (m *LocationMonitor) Spawned() bool { return m.life.spawned }

func (m *LocationMonitor) Interpolator() *Interpolator { return m.interp }

// SyncRate returns the server's distance throttle, nil on clients.
func (m *LocationMonitor) SyncRate() *SyncRate { return m.rate }

func (m *LocationMonitor) link(id ObserverID) *locationLink {
	l, ok := m.links[id]
	if !ok {
		l = &locationLink{}
		m.links[id] = l
	}
	return l
}

// OnObserverConnected sends a reliable baseline, and the active state when
// it is replicated, to a newly connected observer.
func (m *LocationMonitor) OnObserverConnected(id ObserverID) {
	if !m.env.IsServer || !m.life.spawned || id == ServerID || id == m.id.Owner {
		return
	}
	l := &locationLink{}
	m.links[id] = l
	now := m.env.now()
	c := m.collect(l, now, true)
	if m.send(c.frame, func(payload []byte) error {
		return m.env.Transport.SendTo(id, m.msgClient, payload, netconfig.Reliable)
	}) {
		c.commit(l)
	}
	if m.opts.SynchronizeActiveState {
		m.sendActive(m.host.Active(), func(payload []byte) error {
			return m.env.Transport.SendTo(id, m.msgActiveClient, payload, netconfig.Reliable)
		})
	}
}

// OnObserverDisconnected drops everything kept for an observer.
func (m *LocationMonitor) OnObserverDisconnected(id ObserverID) {
	delete(m.links, id)
	if m.rate != nil {
		m.rate.Forget(id)
	}
}

// OnImmediateTransformChange handles a teleport. The authority sends the new
// pose reliably so that every receiver jumps to it, then restarts its
// velocity estimates from there.
func (m *LocationMonitor) OnImmediateTransformChange() {
	pose := m.host.Pose()
	if m.interp != nil {
		m.interp.Snap(Sample{pose.Position, pose.Rotation})
	}
	if !m.life.spawned || !m.env.isOwner(m.id) {
		m.rebaseLinks(pose, false)
		return
	}
	f := SnapFrame{
		Position: gamemath.Vec32(pose.Position),
		Euler:    gamemath.Vec32(gamemath.QuatToEuler(pose.Rotation)),
	}
	if m.env.IsServer {
		m.broadcastSnap(f, pose)
		return
	}
	m.sendSnap(f, func(payload []byte) error {
		return m.env.Transport.SendTo(ServerID, m.msgSnapServer, payload, netconfig.Reliable)
	})
	m.rebaseLinks(pose, true)
}

// rebaseLinks restarts every link's velocity estimate at pose. With commit
// set the links also record pose as received.
func (m *LocationMonitor) rebaseLinks(pose gamemath.Pose, commit bool) {
	now := m.env.now()
	for _, l := range m.links {
		if commit {
			l.pos.Commit(pose.Position)
			l.rot.Commit(pose.Rotation)
		}
		l.velOrigin = pose.Position
		l.velTime = now
		l.velValid = false
		l.moving = false
	}
}

// broadcastSnap sends a snap to every client but the owner and marks the
// pose as received on every link.
func (m *LocationMonitor) broadcastSnap(f SnapFrame, pose gamemath.Pose) {
	var except []ObserverID
	if m.id.Owner != ServerID {
		except = append(except, m.id.Owner)
	}
	m.sendSnap(f, func(payload []byte) error {
		return m.env.Transport.SendToAll(m.msgSnapClient, payload, netconfig.Reliable, except...)
	})
	m.rebaseLinks(pose, true)
}

func (m *LocationMonitor) sendSnap(f SnapFrame, deliver func([]byte) error) {
	payload, err := f.Marshal()
	if err != nil {
		m.log.Error().Err(err).Msg("encode location snap")
		return
	}
	if err := deliver(payload); err != nil {
		m.log.Warn().Err(err).Msg("send location snap")
		return
	}
	m.env.Metrics.sent(kindLocation, len(payload), 1)
}

func (m *LocationMonitor) onSnap(from ObserverID, payload []byte) {
	f, err := UnmarshalSnapFrame(payload)
	if err != nil {
		m.env.Metrics.dropped(kindLocation, "malformed")
		m.tick.Debug().Err(err).Uint64("from", uint64(from)).Msg("drop location snap")
		return
	}
	if m.env.IsServer && from != m.id.Owner {
		m.env.Metrics.dropped(kindLocation, "not owner")
		return
	}

	pose := m.host.Pose()
	if m.opts.SynchronizePosition {
		pose.Position = gamemath.Vec64(f.Position)
	}
	if m.opts.SynchronizeRotation {
		pose.Rotation = gamemath.EulerToQuat(gamemath.Vec64(f.Euler))
	}
	m.interp.Snap(Sample{pose.Position, pose.Rotation})
	m.interp.Received(m.env.now())
	m.host.SetPosition(pose.Position)
	m.host.SetRotation(pose.Rotation)
	m.env.Metrics.received(kindLocation)

	if m.env.IsServer {
		m.broadcastSnap(f, pose)
	}
}

// locationCandidate is a collected frame and the values to commit to the
// link once it is sent.
type locationCandidate struct {
	frame  LocationFrame
	pose   gamemath.Pose
	vel    mgl64.Vec3
	angVel mgl64.Vec3
	now    float64
}

func (c locationCandidate) commit(l *locationLink) {
	f := c.frame
	if f.Mask.Has(netconfig.LocationPosition) {
		l.pos.Commit(c.pose.Position)
		l.velOrigin = c.pose.Position
		l.velTime = c.now
		l.velValid = true
		l.moving = f.Velocity != (mgl32.Vec3{})
	}
	if f.Mask.Has(netconfig.LocationRigidbodyVelocity) {
		l.vel.Commit(c.vel)
	}
	if f.Mask.Has(netconfig.LocationRotation) {
		l.rot.Commit(c.pose.Rotation)
	}
	if f.Mask.Has(netconfig.LocationRigidbodyAngularVelocity) {
		l.angVel.Commit(c.angVel)
	}
	if f.Mask.Has(netconfig.LocationScale) {
		l.scale.Commit(c.pose.Scale)
	}
}

// collect builds the delta for one link; full ignores what was committed.
func (m *LocationMonitor) collect(l *locationLink, now float64, full bool) locationCandidate {
	pose := m.host.Pose()
	c := locationCandidate{pose: pose, now: now}
	f := &c.frame
	rb := m.host.Rigidbody()

	if m.opts.SynchronizePosition {
		if full || l.pos.Dirty(pose.Position) || l.moving {
			f.Mask |= netconfig.LocationPosition
			f.Position = gamemath.Vec32(pose.Position)
			f.Velocity = gamemath.Vec32(l.velocity(pose.Position, now))
		}
		if rb != nil {
			c.vel = rb.Velocity()
			if full || l.vel.Dirty(c.vel) {
				f.Mask |= netconfig.LocationRigidbodyVelocity
				f.BodyVelocity = gamemath.Vec32(c.vel)
			}
		}
	}
	if m.opts.SynchronizeRotation {
		if full || l.rot.Dirty(pose.Rotation) {
			f.Mask |= netconfig.LocationRotation
			f.Euler = gamemath.Vec32(gamemath.QuatToEuler(pose.Rotation))
		}
		if rb != nil {
			c.angVel = rb.AngularVelocity()
			if full || l.angVel.Dirty(c.angVel) {
				f.Mask |= netconfig.LocationRigidbodyAngularVelocity
				f.AngularVelocity = gamemath.Vec32(c.angVel)
			}
		}
	}
	if m.opts.SynchronizeScale && (full || l.scale.Dirty(pose.Scale)) {
		f.Mask |= netconfig.LocationScale
		f.Scale = gamemath.Vec32(pose.Scale)
	}
	return c
}

func (m *LocationMonitor) advanceRate(dt float64) {
	if m.observers == nil {
		return
	}
	m.rate.Advance(dt, m.host.Pose().Position, m.observers.Observers())
}

// serverSend delivers a delta to every due observer. Observers whose
// deltas encode identically share one send.
func (m *LocationMonitor) serverSend(due []ObserverID) {
	if !m.life.spawned {
		staleCallback(m.tick, "sync rate")
		return
	}
	now := m.env.now()
	type group struct {
		to         []ObserverID
		candidates []locationCandidate
	}
	groups := make(map[string]*group)
	var order []string
	for _, id := range due {
		if id == m.id.Owner {
			continue
		}
		c := m.collect(m.link(id), now, false)
		if c.frame.Mask == 0 {
			continue
		}
		payload, err := c.frame.Marshal()
		if err != nil {
			m.log.Error().Err(err).Msg("encode location frame")
			continue
		}
		g, ok := groups[string(payload)]
		if !ok {
			g = &group{}
			groups[string(payload)] = g
			order = append(order, string(payload))
		}
		g.to = append(g.to, id)
		g.candidates = append(g.candidates, c)
	}
	for _, key := range order {
		g := groups[key]
		if err := m.env.Transport.SendToMany(g.to, m.msgClient, []byte(key), m.delivery); err != nil {
			m.tick.Debug().Err(err).Msg("send location frame")
			continue
		}
		m.env.Metrics.sent(kindLocation, len(key), len(g.to))
		for i, id := range g.to {
			g.candidates[i].commit(m.link(id))
		}
	}
}

func (m *LocationMonitor) clientSync(float64) {
	l := m.link(ServerID)
	c := m.collect(l, m.env.now(), false)
	if c.frame.Mask == 0 {
		return
	}
	if m.send(c.frame, func(payload []byte) error {
		return m.env.Transport.SendTo(ServerID, m.msgServer, payload, m.delivery)
	}) {
		c.commit(l)
	}
}

func (m *LocationMonitor) send(f LocationFrame, deliver func([]byte) error) bool {
	payload, err := f.Marshal()
	if err != nil {
		m.log.Error().Err(err).Msg("encode location frame")
		return false
	}
	if err := deliver(payload); err != nil {
		m.tick.Debug().Err(err).Msg("send location frame")
		return false
	}
	m.env.Metrics.sent(kindLocation, len(payload), 1)
	return true
}

func (m *LocationMonitor) onFrame(from ObserverID, payload []byte) {
	f, err := UnmarshalLocationFrame(payload)
	if err != nil {
		m.env.Metrics.dropped(kindLocation, "malformed")
		m.tick.Debug().Err(err).Uint64("from", uint64(from)).Msg("drop location frame")
		return
	}
	if m.env.IsServer && from != m.id.Owner {
		m.env.Metrics.dropped(kindLocation, "not owner")
		return
	}
	m.apply(f, m.env.now())
	m.env.Metrics.received(kindLocation)
}

func (m *LocationMonitor) apply(f LocationFrame, now float64) {
	rb := m.host.Rigidbody()
	if f.Mask.Has(netconfig.LocationPosition) && m.opts.SynchronizePosition {
		m.interp.SetTargetPosition(gamemath.Vec64(f.Position), gamemath.Vec64(f.Velocity), now, true)
	}
	if f.Mask.Has(netconfig.LocationRigidbodyVelocity) && rb != nil {
		rb.SetVelocity(gamemath.Vec64(f.BodyVelocity))
	}
	if f.Mask.Has(netconfig.LocationRotation) && m.opts.SynchronizeRotation {
		m.interp.SetTargetRotation(gamemath.EulerToQuat(gamemath.Vec64(f.Euler)))
	}
	if f.Mask.Has(netconfig.LocationRigidbodyAngularVelocity) && rb != nil {
		rb.SetAngularVelocity(gamemath.Vec64(f.AngularVelocity))
	}
	if f.Mask.Has(netconfig.LocationScale) && m.opts.SynchronizeScale {
		m.host.SetScale(gamemath.Vec64(f.Scale))
	}
	m.interp.Received(now)
}

func (m *LocationMonitor) render(dt float64) {
	fraction := gamemath.Clamp01(dt * m.env.Settings.Network.SyncRateClient * m.opts.RemoteInterpolationMultiplier)
	s := m.interp.Step(fraction)
	if m.opts.SynchronizePosition {
		m.host.SetPosition(s.Position)
	}
	if m.opts.SynchronizeRotation {
		m.host.SetRotation(s.Rotation)
	}
}

// SetActive changes the host's active state and, when the active state is
// replicated, tells the other peers. Only the authority may call it.
func (m *LocationMonitor) SetActive(active bool) error {
	if !m.life.spawned {
		return ErrNotSpawned
	}
	m.host.SetActive(active)
	if !m.opts.SynchronizeActiveState {
		return nil
	}
	if m.env.IsServer {
		return m.broadcastActive(active)
	}
	if !m.env.isOwner(m.id) {
		return nil
	}
	return m.sendActiveErr(active, func(payload []byte) error {
		return m.env.Transport.SendTo(ServerID, m.msgActiveServer, payload, netconfig.Reliable)
	})
}

func (m *LocationMonitor) broadcastActive(active bool) error {
	var except []ObserverID
	if m.id.Owner != ServerID {
		except = append(except, m.id.Owner)
	}
	return m.sendActiveErr(active, func(payload []byte) error {
		return m.env.Transport.SendToAll(m.msgActiveClient, payload, netconfig.Reliable, except...)
	})
}

func (m *LocationMonitor) sendActive(active bool, deliver func([]byte) error) {
	if err := m.sendActiveErr(active, deliver); err != nil {
		m.log.Debug().Err(err).Msg("send active state")
	}
}

func (m *LocationMonitor) sendActiveErr(active bool, deliver func([]byte) error) error {
	w := wire.NewWriter()
	w.Bool(active)
	payload, err := w.Bytes()
	if err != nil {
		return err
	}
	return deliver(payload)
}

func (m *LocationMonitor) onActive(from ObserverID, payload []byte) {
	r := wire.NewReader(payload)
	active := r.Bool()
	if err := r.Done(); err != nil {
		m.env.Metrics.dropped(kindLocation, "malformed")
		m.log.Debug().Err(err).Msg("drop active state")
		return
	}
	if m.env.IsServer {
		if from != m.id.Owner {
			m.env.Metrics.dropped(kindLocation, "not owner")
			return
		}
		m.host.SetActive(active)
		if m.opts.SynchronizeActiveState {
			if err := m.broadcastActive(active); err != nil {
				m.log.Debug().Err(err).Msg("relay active state")
			}
		}
		return
	}
	m.host.SetActive(active)
}
