package replication

import (
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/greedyvox/netsync/shared/protocol"
	"github.com/rs/zerolog"
)

const kindAnimator = "animator"

// AnimatorMonitor replicates animator parameters and item slots. Receivers
// apply discrete parameters when a frame arrives and re-apply continuous
// ones every render tick so the animator blends toward them.
type AnimatorMonitor struct {
	env      Env
	id       Identity
	host     AnimatorHost
	delivery netconfig.Delivery
	log      zerolog.Logger
	tick     zerolog.Logger
	life     lifecycle

	msgServer          string
	msgClient          string
	msgBaseline        string
	msgBaselineRequest string

	sent      Tracked[AnimatorParams]
	sentSlots [netconfig.MaxItemSlots]Tracked[ItemSlot]

	network    AnimatorParams
	continuous netconfig.AnimatorFlag
}

func NewAnimatorMonitor(env Env, id Identity, host AnimatorHost) *AnimatorMonitor {
	m := &AnimatorMonitor{
		env:      env,
		id:       id,
		host:     host,
		delivery: env.Settings.AnimatorDelivery(),
		log: logging.Component(env.Log, "animator").With().
			Uint64("object", id.ObjectID).
			Logger(),

		msgServer:          protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindAnimator, id.ObjectID),
		msgClient:          protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindAnimator, id.ObjectID),
		msgBaseline:        protocol.Name(uint64(id.Owner), protocol.ToClient, protocol.KindAnimatorBaseline, id.ObjectID),
		msgBaselineRequest: protocol.Name(uint64(id.Owner), protocol.ToServer, protocol.KindAnimatorBaselineRequest, id.ObjectID),
	}
	m.tick = logging.Sampled(m.log)
	m.life = lifecycle{env: env, log: m.tick}
	return m
}

func (m *AnimatorMonitor) Spawn() {
	if m.life.spawned {
		return
	}
	m.life.spawned = true
	owner := m.env.isOwner(m.id)
	m.network = m.host.AnimatorParameters()

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
		} else {
			m.life.on(m.msgClient, m.onFrame)
			m.life.on(m.msgBaseline, m.onFrame)
			if err := m.env.Transport.SendTo(ServerID, m.msgBaselineRequest, nil, netconfig.Reliable); err != nil {
				m.log.Warn().Err(err).Msg("request animator baseline")
			}
		}
	}
}

func (m *AnimatorMonitor) Despawn() {
	if m.life.spawned {
		m.life.teardown()
	}
}

func (m *AnimatorMonitor) Spawned() bool { return m.life.spawned }

// MarkItemSlotDirty forces slot i to be sent with the next frame.
func (m *AnimatorMonitor) MarkItemSlotDirty(i int) {
	if i >= 0 && i < netconfig.MaxItemSlots {
		m.sentSlots[i].Reset()
	}
}

func (m *AnimatorMonitor) slotCount() int {
	n := m.host.ItemSlotCount()
	if n > netconfig.MaxItemSlots {
		n = netconfig.MaxItemSlots
	}
	return n
}

// collect builds the delta against the last committed parameters. Nothing
// committed yet means every parameter is sent.
func (m *AnimatorMonitor) collect() AnimatorFrame {
	cur := m.host.AnimatorParameters()
	f := AnimatorFrame{Params: cur}
	if last, ok := m.sent.Last(); ok {
		f.Mask = cur.Diff(last)
	} else {
		f.Mask = netconfig.AnimatorParams
	}
	for i := 0; i < m.slotCount(); i++ {
		s := m.host.ItemSlot(i)
		if m.sentSlots[i].Dirty(s) {
			f.SlotMask |= 1 << i
			f.Slots[i] = s
		}
	}
	if f.SlotMask != 0 {
		f.Mask |= netconfig.AnimatorItemSlots
	}
	return f
}

func (m *AnimatorMonitor) commit(f AnimatorFrame) {
	if f.Mask&netconfig.AnimatorParams != 0 {
		m.sent.Commit(f.Params)
	}
	for i := 0; i < netconfig.MaxItemSlots; i++ {
		if f.SlotMask&(1<<i) != 0 {
			m.sentSlots[i].Commit(f.Slots[i])
		}
	}
}

// Baseline builds a frame carrying every parameter and slot.
func (m *AnimatorMonitor) Baseline() AnimatorFrame {
	f := AnimatorFrame{Mask: netconfig.AnimatorParams, Params: m.host.AnimatorParameters()}
	for i := 0; i < m.slotCount(); i++ {
		f.SlotMask |= 1 << i
		f.Slots[i] = m.host.ItemSlot(i)
	}
	if f.SlotMask != 0 {
		f.Mask |= netconfig.AnimatorItemSlots
	}
	return f
}

func (m *AnimatorMonitor) clientSync(float64) {
	f := m.collect()
	if f.Mask == 0 {
		return
	}
	if m.send(f, func(payload []byte) error {
		return m.env.Transport.SendTo(ServerID, m.msgServer, payload, m.delivery)
	}) {
		m.commit(f)
	}
}

func (m *AnimatorMonitor) serverSync(float64) {
	f := m.collect()
	if f.Mask == 0 {
		return
	}
	var except []ObserverID
	if m.id.Owner != ServerID {
		except = append(except, m.id.Owner)
	}
	if m.send(f, func(payload []byte) error {
		return m.env.Transport.SendToAll(m.msgClient, payload, m.delivery, except...)
	}) {
		m.commit(f)
	}
}

func (m *AnimatorMonitor) send(f AnimatorFrame, deliver func([]byte) error) bool {
	payload, err := f.Marshal()
	if err != nil {
		m.log.Error().Err(err).Msg("encode animator frame")
		return false
	}
	if err := deliver(payload); err != nil {
		m.tick.Debug().Err(err).Msg("send animator frame")
		return false
	}
	m.env.Metrics.sent(kindAnimator, len(payload), 1)
	return true
}

func (m *AnimatorMonitor) onFrame(from ObserverID, payload []byte) {
	f, err := UnmarshalAnimatorFrame(payload)
	if err != nil {
		m.env.Metrics.dropped(kindAnimator, "malformed")
		m.tick.Debug().Err(err).Uint64("from", uint64(from)).Msg("drop animator frame")
		return
	}
	if m.env.IsServer && from != m.id.Owner {
		m.env.Metrics.dropped(kindAnimator, "not owner")
		return
	}
	m.apply(f)
	m.env.Metrics.received(kindAnimator)
}

func (m *AnimatorMonitor) apply(f AnimatorFrame) {
	m.network.Merge(f.Params, f.Mask)
	if discrete := f.Mask & netconfig.AnimatorParams &^ netconfig.AnimatorContinuous; discrete != 0 {
		m.host.ApplyAnimatorParameters(m.network, discrete)
	}
	m.continuous |= f.Mask & netconfig.AnimatorContinuous

	if !f.Mask.Has(netconfig.AnimatorItemSlots) {
		return
	}
	n := m.slotCount()
	for i := 0; i < netconfig.MaxItemSlots; i++ {
		if f.SlotMask&(1<<i) == 0 {
			continue
		}
		if i >= n {
			m.tick.Debug().Int("slot", i).Msg("item slot out of range")
			continue
		}
		m.host.ApplyItemSlot(i, f.Slots[i])
	}
}

func (m *AnimatorMonitor) render(float64) {
	if m.continuous != 0 {
		m.host.ApplyAnimatorParameters(m.network, m.continuous)
	}
}

func (m *AnimatorMonitor) onBaselineRequest(from ObserverID, _ []byte) {
	f := m.Baseline()
	m.send(f, func(payload []byte) error {
		return m.env.Transport.SendTo(from, m.msgBaseline, payload, netconfig.Reliable)
	})
}
