package replication

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/protocol"
	"github.com/rs/zerolog"
)

const kindTransform = "transform"

// TransformMonitor replicates a character's transform. Characters standing
// on a networked moving platform are sent in the platform's local space so
// that every peer keeps them attached regardless of where its copy of the
// platform is.
type TransformMonitor struct {
	env        Env
	id         Identity
	host       TransformHost
	delivery   netconfig.Delivery
	syncScale  bool
	multiplier float64
	log        zerolog.Logger
	tick       zerolog.Logger // sampled, for per-frame messages
	life       lifecycle

	msgServer          string
	msgClient          string
	msgBaseline        string
	msgBaselineRequest string
	msgSnapServer      string
	msgSnapClient      string

	// authority
	sentPos      Tracked[mgl64.Vec3]
	sentRot      Tracked[mgl64.Quat]
	sentScale    Tracked[mgl64.Vec3]
	sentPlatform uint64
	velOrigin    mgl64.Vec3
	velTime      float64
	velValid     bool
	moving       bool // last committed frame carried a non-zero velocity

	// receiver
	interp     *Interpolator
	platformID uint64
	platform   Networked

	// server relay of a client-owned character
	relay TransformFrame
}

func NewTransformMonitor(env Env, id Identity, host TransformHost) *TransformMonitor {
	s := env.Settings
	m := &TransformMonitor{
		env:        env,
		id:         id,
		host:       host,
		delivery:   s.TransformDelivery(),
		syncScale:  s.Transform.SynchronizeScale,
		multiplier: s.Transform.RemoteInterpolationMultiplier,
		log: logging.Component(env.Log, "transform").With().
			Uint64("object", id.ObjectID).
			Uint64("owner", uint64(id.Owner)).
			Logger(),

		msgServer:          protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindTransform, id.ObjectID),
		msgClient:          protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindTransform, id.ObjectID),
		msgBaseline:        protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindTransformBaseline, id.ObjectID),
		msgBaselineRequest: protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindTransformBaselineRequest, id.ObjectID),
		msgSnapServer:      protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindTransformSnap, id.ObjectID),
		msgSnapClient:      protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindTransformSnap, id.ObjectID),
	}
	m.tick = logging.Sampled(m.log)
	m.life = lifecycle{env: env, log: m.tick}
	return m
}

// Spawn registers the monitor's phases and handlers for its role.
func (m *TransformMonitor) Spawn() {
	if m.life.spawned {
		return
	}
	m.life.spawned = true
	owner := m.env.isOwner(m.id)
	pose := m.host.Pose()

	m.rebaseAuthority(pose)
	m.interp = NewInterpolator(Sample{pose.Position, pose.Rotation}, m.env.Settings.Network.MaxExtrapolation)

	switch {
	case m.env.IsServer:
		m.life.every(schedule.ServerSync, m.serverSync)
		m.life.on(m.msgBaselineRequest, m.onBaselineRequest)
	case owner:
		m.life.every(schedule.ClientSync, m.clientSync)
	}

	if !owner {
		m.life.every(schedule.Update, m.render)
		if m.env.IsServer {
			m.life.on(m.msgServer, m.onFrame)
			m.life.on(m.msgSnapServer, m.onSnap)
		} else {
			m.life.on(m.msgClient, m.onFrame)
			m.life.on(m.msgBaseline, m.onFrame)
			m.life.on(m.msgSnapClient, m.onSnap)
			m.requestBaseline()
		}
	}
	m.log.Debug().Bool("server", m.env.IsServer).Bool("owner", owner).Msg("spawned")
}

// Despawn releases every registration. Callbacks that still fire are
// reported as stale.
func (m *TransformMonitor) Despawn() {
	if !m.life.spawned {
		return
	}
	m.life.teardown()
	m.log.Debug().Msg("despawned")
}

func (m *TransformMonitor) Spawned() bool { return m.life.spawned }

// OnRespawn handles a respawn of the character. The authority sends its
// new pose reliably; every receiver jumps to it and treats the next frame
// as an initial sync.
func (m *TransformMonitor) OnRespawn() {
	m.poseChanged(true)
}

// OnImmediateTransformChange handles a teleport: the authority sends its new
// pose reliably and every receiver jumps to it without gliding.
func (m *TransformMonitor) OnImmediateTransformChange() {
	m.poseChanged(false)
}

func (m *TransformMonitor) poseChanged(respawn bool) {
	pose := m.host.Pose()
	if !m.life.spawned || !m.env.isOwner(m.id) {
		m.rebaseVelocity(pose.Position)
		if m.interp != nil {
			m.snapTo(m.localSample(pose), respawn)
		}
		return
	}

	f := SnapFrame{
		Respawn:  respawn,
		Position: gamemath.Vec32(pose.Position),
		Euler:    gamemath.Vec32(gamemath.QuatToEuler(pose.Rotation)),
	}
	if m.env.IsServer {
		m.sendSnap(f, func(payload []byte) error {
			return m.env.Transport.SendToAll(m.msgSnapClient, payload, netconfig.Reliable)
		})
	} else {
		m.sendSnap(f, func(payload []byte) error {
			return m.env.Transport.SendTo(ServerID, m.msgSnapServer, payload, netconfig.Reliable)
		})
	}
	// Receivers are now in world space at the new pose; a rider re-sends
	// its platform-relative pose on the next sync.
	m.rebaseAuthority(pose)
	m.sentPlatform = 0
	m.snapTo(Sample{pose.Position, pose.Rotation}, respawn)
}

func (m *TransformMonitor) snapTo(s Sample, respawn bool) {
	if respawn {
		m.interp.Restart(s)
	} else {
		m.interp.Snap(s)
	}
}

func (m *TransformMonitor) sendSnap(f SnapFrame, deliver func([]byte) error) {
	payload, err := f.Marshal()
	if err != nil {
		m.log.Error().Err(err).Msg("encode transform snap")
		return
	}
	if err := deliver(payload); err != nil {
		m.log.Warn().Err(err).Msg("send transform snap")
		return
	}
	m.env.Metrics.sent(kindTransform, len(payload), 1)
}

// onSnap jumps a receiver to the pose in a snap frame. The server relays
// snaps of client-owned characters to everyone but the owner, dropping the
// deltas it was holding for them.
func (m *TransformMonitor) onSnap(from ObserverID, payload []byte) {
	f, err := UnmarshalSnapFrame(payload)
	if err != nil {
		m.env.Metrics.dropped(kindTransform, "malformed")
		m.tick.Debug().Err(err).Uint64("from", uint64(from)).Msg("drop transform snap")
		return
	}
	if m.env.IsServer && from != m.id.Owner {
		m.env.Metrics.dropped(kindTransform, "not owner")
		return
	}

	if m.platformID != 0 {
		m.platformID = 0
		m.platform = nil
		m.host.SetMovingPlatform(nil)
	}
	s := Sample{gamemath.Vec64(f.Position), gamemath.EulerToQuat(gamemath.Vec64(f.Euler))}
	m.snapTo(s, f.Respawn)
	if !f.Respawn {
		m.interp.Received(m.env.now())
	}
	m.writeHost(s)
	m.env.Metrics.received(kindTransform)
	m.log.Debug().Bool("respawn", f.Respawn).Msg("snapped")

	if m.env.IsServer {
		m.relay = TransformFrame{}
		m.sendSnap(f, func(payload []byte) error {
			return m.env.Transport.SendToAll(m.msgSnapClient, payload, netconfig.Reliable, m.id.Owner)
		})
	}
}

// Interpolator exposes the receiver state.
func (m *TransformMonitor) Interpolator() *Interpolator { return m.interp }

func (m *TransformMonitor) rebaseAuthority(pose gamemath.Pose) {
	m.sentPlatform = 0
	if p := m.host.MovingPlatform(); p != nil {
		if id, ok := p.NetworkID(); ok {
			pos, rot := ToPlatformSpace(pose.Position, pose.Rotation, p.Pose())
			m.sentPlatform = id
			m.sentPos.Commit(pos)
			m.sentRot.Commit(rot)
		}
	}
	if m.sentPlatform == 0 {
		m.sentPos.Commit(pose.Position)
		m.sentRot.Commit(pose.Rotation)
	}
	m.sentScale.Commit(pose.Scale)
	m.rebaseVelocity(pose.Position)
}

func (m *TransformMonitor) rebaseVelocity(pos mgl64.Vec3) {
	m.velOrigin = pos
	m.velTime = m.env.now()
	m.velValid = false
	m.moving = false
}

// localSample expresses a world pose in the receiver's current space.
func (m *TransformMonitor) localSample(pose gamemath.Pose) Sample {
	if m.platform != nil {
		pos, rot := ToPlatformSpace(pose.Position, pose.Rotation, m.platform.Pose())
		return Sample{pos, rot}
	}
	return Sample{pose.Position, pose.Rotation}
}

// transformCandidate is a collected frame plus the host-precision values to
// commit once the frame is sent.
type transformCandidate struct {
	frame    TransformFrame
	pos      mgl64.Vec3
	rot      mgl64.Quat
	scale    mgl64.Vec3
	platform uint64
	worldPos mgl64.Vec3
	now      float64
}

func (m *TransformMonitor) platformOf() (Networked, uint64) {
	p := m.host.MovingPlatform()
	if p == nil {
		return nil, 0
	}
	id, ok := p.NetworkID()
	if !ok {
		m.tick.Error().Msg("moving platform has no network identity; sending world space")
		return nil, 0
	}
	return p, id
}

// collect samples the host and builds the delta against the last committed
// values. The mask is zero when nothing changed.
func (m *TransformMonitor) collect(now float64) transformCandidate {
	pose := m.host.Pose()
	c := transformCandidate{scale: pose.Scale, worldPos: pose.Position, now: now}
	f := &c.frame

	platform, pid := m.platformOf()
	modeChanged := pid != m.sentPlatform
	c.platform = pid

	if platform != nil {
		c.pos, c.rot = ToPlatformSpace(pose.Position, pose.Rotation, platform.Pose())
	} else {
		c.pos = pose.Position
		c.rot = pose.Rotation
	}

	// A character that stops gets one more frame with zero velocity so
	// receivers stop extrapolating.
	if modeChanged || m.sentPos.Dirty(c.pos) || m.moving {
		f.Mask |= netconfig.TransformPosition
		f.Position = gamemath.Vec32(c.pos)
		if platform == nil {
			f.Velocity = gamemath.Vec32(m.velocity(pose.Position, now))
		}
	}
	if modeChanged || m.sentRot.Dirty(c.rot) {
		f.Mask |= netconfig.TransformRotation
		f.Euler = gamemath.Vec32(gamemath.QuatToEuler(c.rot))
	}
	if m.syncScale && m.sentScale.Dirty(pose.Scale) {
		f.Mask |= netconfig.TransformScale
		f.Scale = gamemath.Vec32(pose.Scale)
	}
	if platform != nil && f.Mask != 0 {
		f.Mask |= netconfig.TransformPlatform
		f.PlatformID = pid
	}
	return c
}

func (m *TransformMonitor) velocity(pos mgl64.Vec3, now float64) mgl64.Vec3 {
	elapsed := now - m.velTime
	if !m.velValid || elapsed <= 0 {
		return mgl64.Vec3{}
	}
	return pos.Sub(m.velOrigin).Mul(1 / elapsed)
}

func (m *TransformMonitor) commit(c transformCandidate) {
	f := c.frame
	if f.Mask.Has(netconfig.TransformPosition) {
		m.sentPos.Commit(c.pos)
		m.velOrigin = c.worldPos
		m.velTime = c.now
		m.velValid = true
		m.moving = f.Velocity != (mgl32.Vec3{})
	}
	if f.Mask.Has(netconfig.TransformRotation) {
		m.sentRot.Commit(c.rot)
	}
	if f.Mask.Has(netconfig.TransformScale) {
		m.sentScale.Commit(c.scale)
	}
	if f.Mask&(netconfig.TransformPosition|netconfig.TransformRotation) != 0 {
		m.sentPlatform = c.platform
	}
}

func (m *TransformMonitor) clientSync(float64) {
	c := m.collect(m.env.now())
	if c.frame.Mask == 0 {
		return
	}
	if m.send(c.frame, func(payload []byte) error {
		return m.env.Transport.SendTo(ServerID, m.msgServer, payload, m.delivery)
	}) {
		m.commit(c)
	}
}

func (m *TransformMonitor) serverSync(float64) {
	if m.env.isOwner(m.id) {
		c := m.collect(m.env.now())
		if c.frame.Mask == 0 {
			return
		}
		if m.send(c.frame, func(payload []byte) error {
			return m.env.Transport.SendToAll(m.msgClient, payload, m.delivery)
		}) {
			m.commit(c)
		}
		return
	}
	if m.relay.Mask == 0 {
		return
	}
	if m.send(m.relay, func(payload []byte) error {
		return m.env.Transport.SendToAll(m.msgClient, payload, m.delivery, m.id.Owner)
	}) {
		m.relay = TransformFrame{}
	}
}

func (m *TransformMonitor) send(f TransformFrame, deliver func([]byte) error) bool {
	payload, err := f.Marshal()
	if err != nil {
		m.log.Error().Err(err).Msg("encode transform frame")
		return false
	}
	if err := deliver(payload); err != nil {
		m.tick.Debug().Err(err).Msg("send transform frame")
		return false
	}
	m.env.Metrics.sent(kindTransform, len(payload), 1)
	return true
}

// mergeRelay folds a received frame into the pending relay frame. A change
// of platform mode discards what was pending, since its fields were in the
// old space.
func (m *TransformMonitor) mergeRelay(f TransformFrame) {
	r := &m.relay
	if r.Mask != 0 {
		wasPlatform := r.Mask.Has(netconfig.TransformPlatform)
		isPlatform := f.Mask.Has(netconfig.TransformPlatform)
		if wasPlatform != isPlatform || (isPlatform && r.PlatformID != f.PlatformID) {
			scale, hadScale := r.Scale, r.Mask.Has(netconfig.TransformScale)
			*r = TransformFrame{}
			if hadScale {
				r.Mask = netconfig.TransformScale
				r.Scale = scale
			}
		}
	}
	if f.Mask.Has(netconfig.TransformPlatform) {
		r.PlatformID = f.PlatformID
	}
	if f.Mask.Has(netconfig.TransformPosition) {
		r.Position = f.Position
		r.Velocity = f.Velocity
	}
	if f.Mask.Has(netconfig.TransformRotation) {
		r.Euler = f.Euler
	}
	if f.Mask.Has(netconfig.TransformScale) {
		r.Scale = f.Scale
	}
	r.Mask |= f.Mask
	if !f.Mask.Has(netconfig.TransformPlatform) {
		r.Mask &^= netconfig.TransformPlatform
	}
}

func (m *TransformMonitor) onFrame(from ObserverID, payload []byte) {
	f, err := UnmarshalTransformFrame(payload)
	if err != nil {
		m.env.Metrics.dropped(kindTransform, "malformed")
		m.tick.Debug().Err(err).Uint64("from", uint64(from)).Msg("drop transform frame")
		return
	}
	if m.env.IsServer && from != m.id.Owner {
		m.env.Metrics.dropped(kindTransform, "not owner")
		m.tick.Debug().Uint64("from", uint64(from)).Msg("drop transform frame from non-owner")
		return
	}
	m.apply(f, m.env.now())
	m.env.Metrics.received(kindTransform)
	if m.env.IsServer {
		m.mergeRelay(f)
	}
}

// apply moves a decoded frame into the receiver state.
func (m *TransformMonitor) apply(f TransformFrame, now float64) {
	if f.Mask.Has(netconfig.TransformPlatform) {
		m.applyPlatform(f, now)
	} else {
		m.applyWorld(f, now)
	}
	if f.Mask.Has(netconfig.TransformScale) {
		m.host.SetScale(gamemath.Vec64(f.Scale))
	}
	m.interp.Received(now)
}

func (m *TransformMonitor) applyPlatform(f TransformFrame, now float64) {
	if f.PlatformID != m.platformID {
		p, ok := m.env.Registry.Lookup(f.PlatformID)
		if !ok {
			// The platform may not have spawned here yet; keep the current
			// state and try again with the next frame.
			m.env.Metrics.dropped(kindTransform, "unknown platform")
			m.tick.Debug().Uint64("platform", f.PlatformID).Msg("platform not resolved; relative fields skipped")
			return
		}
		m.platformID = f.PlatformID
		m.platform = p
		m.host.SetMovingPlatform(p)

		snap := m.localSample(m.host.Pose())
		if f.Mask.Has(netconfig.TransformPosition) {
			snap.Position = gamemath.Vec64(f.Position)
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			snap.Rotation = gamemath.EulerToQuat(gamemath.Vec64(f.Euler))
		}
		m.interp.Snap(snap)
		m.writeHost(snap)
		m.log.Debug().Uint64("platform", f.PlatformID).Msg("attached to platform")
		return
	}
	if f.Mask.Has(netconfig.TransformPosition) {
		m.interp.SetTargetPosition(gamemath.Vec64(f.Position), mgl64.Vec3{}, now, false)
	}
	if f.Mask.Has(netconfig.TransformRotation) {
		m.interp.SetTargetRotation(gamemath.EulerToQuat(gamemath.Vec64(f.Euler)))
	}
}

func (m *TransformMonitor) applyWorld(f TransformFrame, now float64) {
	if m.platformID != 0 {
		pose := m.host.Pose()
		m.platformID = 0
		m.platform = nil
		m.host.SetMovingPlatform(nil)

		snap := Sample{pose.Position, pose.Rotation}
		if f.Mask.Has(netconfig.TransformPosition) {
			snap.Position = gamemath.Vec64(f.Position)
		}
		if f.Mask.Has(netconfig.TransformRotation) {
			snap.Rotation = gamemath.EulerToQuat(gamemath.Vec64(f.Euler))
		}
		m.interp.Snap(snap)
		m.writeHost(snap)
		m.log.Debug().Msg("detached from platform")
		return
	}
	if f.Mask.Has(netconfig.TransformPosition) {
		m.interp.SetTargetPosition(gamemath.Vec64(f.Position), gamemath.Vec64(f.Velocity), now, true)
	}
	if f.Mask.Has(netconfig.TransformRotation) {
		m.interp.SetTargetRotation(gamemath.EulerToQuat(gamemath.Vec64(f.Euler)))
	}
}

func (m *TransformMonitor) render(dt float64) {
	fraction := gamemath.Clamp01(dt * m.env.Settings.Network.SyncRateClient * m.multiplier)
	m.writeHost(m.interp.Step(fraction))
}

// writeHost converts a sample in the receiver's space to world space.
func (m *TransformMonitor) writeHost(s Sample) {
	if m.platform != nil {
		pos, rot := FromPlatformSpace(s.Position, s.Rotation, m.platform.Pose())
		m.host.SetPosition(pos)
		m.host.SetRotation(rot)
		return
	}
	m.host.SetPosition(s.Position)
	m.host.SetRotation(s.Rotation)
}

// Baseline builds a full-state frame from the host.
func (m *TransformMonitor) Baseline() TransformFrame {
	pose := m.host.Pose()
	f := TransformFrame{Mask: netconfig.TransformPosition | netconfig.TransformRotation}
	if p, pid := m.platformOf(); p != nil {
		pos, rot := ToPlatformSpace(pose.Position, pose.Rotation, p.Pose())
		f.Mask |= netconfig.TransformPlatform
		f.PlatformID = pid
		f.Position = gamemath.Vec32(pos)
		f.Euler = gamemath.Vec32(gamemath.QuatToEuler(rot))
	} else {
		f.Position = gamemath.Vec32(pose.Position)
		f.Euler = gamemath.Vec32(gamemath.QuatToEuler(pose.Rotation))
	}
	if m.syncScale {
		f.Mask |= netconfig.TransformScale
		f.Scale = gamemath.Vec32(pose.Scale)
	}
	return f
}

func (m *TransformMonitor) requestBaseline() {
	if err := m.env.Transport.SendTo(ServerID, m.msgBaselineRequest, nil, netconfig.Reliable); err != nil {
		m.log.Warn().Err(err).Msg("request transform baseline")
	}
}

func (m *TransformMonitor) onBaselineRequest(from ObserverID, _ []byte) {
	f := m.Baseline()
	m.send(f, func(payload []byte) error {
		return m.env.Transport.SendTo(from, m.msgBaseline, payload, netconfig.Reliable)
	})
}
