package replication

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/schedule"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/rs/zerolog"
)

var errSendFailed = errors.New("send failed")

type sentFrame struct {
	to       []ObserverID
	all      bool
	except   []ObserverID
	name     string
	payload  []byte
	delivery netconfig.Delivery
}

// fakeTransport records sends and lets tests deliver frames by name.
type fakeTransport struct {
	handlers map[string]Handler
	sent     []sentFrame
	fail     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]Handler)}
}

func (t *fakeTransport) record(f sentFrame) error {
	if t.fail != nil {
		return t.fail
	}
	f.payload = append([]byte(nil), f.payload...)
	t.sent = append(t.sent, f)
	return nil
}

func (t *fakeTransport) SendTo(to ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	return t.record(sentFrame{to: []ObserverID{to}, name: name, payload: payload, delivery: d})
}

func (t *fakeTransport) SendToMany(to []ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	return t.record(sentFrame{to: append([]ObserverID(nil), to...), name: name, payload: payload, delivery: d})
}

func (t *fakeTransport) SendToAll(name string, payload []byte, d netconfig.Delivery, except ...ObserverID) error {
	return t.record(sentFrame{all: true, except: except, name: name, payload: payload, delivery: d})
}

func (t *fakeTransport) Handle(name string, h Handler) { t.handlers[name] = h }

func (t *fakeTransport) Unhandle(name string) { delete(t.handlers, name) }

func (t *fakeTransport) deliver(from ObserverID, name string, payload []byte) bool {
	h, ok := t.handlers[name]
	if ok {
		h(from, payload)
	}
	return ok
}

func (t *fakeTransport) named(name string) []sentFrame {
	var out []sentFrame
	for _, f := range t.sent {
		if f.name == name {
			out = append(out, f)
		}
	}
	return out
}

func (t *fakeTransport) last() sentFrame {
	return t.sent[len(t.sent)-1]
}

type clock struct{ t float64 }

func (c *clock) now() float64 { return c.t }

type harness struct {
	env       Env
	transport *fakeTransport
	sched     *schedule.Scheduler
	clock     *clock
}

func newHarness(t *testing.T, local ObserverID) *harness {
	t.Helper()
	settings := config.Default()
	settings.Transform.SynchronizeScale = true
	sched := schedule.New(schedule.Rates{
		ClientHz:      settings.Network.SyncRateClient,
		ServerHz:      settings.Network.SyncRateServer,
		FixedTimestep: settings.Network.FixedTimestep,
	})
	c := &clock{}
	tr := newFakeTransport()
	return &harness{
		env: Env{
			Local:     local,
			IsServer:  local == ServerID,
			Transport: tr,
			Scheduler: sched,
			Registry:  NewRegistry(),
			Settings:  settings,
			Clock:     c.now,
			Log:       zerolog.Nop(),
		},
		transport: tr,
		sched:     sched,
		clock:     c,
	}
}

// step advances the clock and the scheduler together.
func (h *harness) step(dt float64) {
	h.clock.t += dt
	h.sched.Advance(dt)
}

// fakePlatform is a networked moving platform.
type fakePlatform struct {
	pose gamemath.Pose
	id   uint64
}

func (p *fakePlatform) Pose() gamemath.Pose { return p.pose }

func (p *fakePlatform) NetworkID() (uint64, bool) { return p.id, p.id != 0 }

// fakeCharacter implements TransformHost.
type fakeCharacter struct {
	pose     gamemath.Pose
	platform Networked
}

func newFakeCharacter(pos mgl64.Vec3) *fakeCharacter {
	return &fakeCharacter{pose: gamemath.PoseAt(pos)}
}

func (c *fakeCharacter) Pose() gamemath.Pose           { return c.pose }
func (c *fakeCharacter) SetPosition(p mgl64.Vec3)      { c.pose.Position = p }
func (c *fakeCharacter) SetRotation(q mgl64.Quat)      { c.pose.Rotation = q }
func (c *fakeCharacter) SetScale(s mgl64.Vec3)         { c.pose.Scale = s }
func (c *fakeCharacter) MovingPlatform() Networked     { return c.platform }
func (c *fakeCharacter) SetMovingPlatform(p Networked) { c.platform = p }

type fakeBody struct {
	vel, angVel mgl64.Vec3
}

func (b *fakeBody) Velocity() mgl64.Vec3            { return b.vel }
func (b *fakeBody) AngularVelocity() mgl64.Vec3     { return b.angVel }
func (b *fakeBody) SetVelocity(v mgl64.Vec3)        { b.vel = v }
func (b *fakeBody) SetAngularVelocity(v mgl64.Vec3) { b.angVel = v }

// fakeProp implements LocationHost.
type fakeProp struct {
	pose   gamemath.Pose
	body   *fakeBody
	active bool
}

func newFakeProp(pos mgl64.Vec3, body *fakeBody) *fakeProp {
	return &fakeProp{pose: gamemath.PoseAt(pos), body: body, active: true}
}

func (p *fakeProp) Pose() gamemath.Pose      { return p.pose }
func (p *fakeProp) SetPosition(v mgl64.Vec3) { p.pose.Position = v }
func (p *fakeProp) SetRotation(q mgl64.Quat) { p.pose.Rotation = q }
func (p *fakeProp) SetScale(s mgl64.Vec3)    { p.pose.Scale = s }
func (p *fakeProp) Active() bool             { return p.active }
func (p *fakeProp) SetActive(a bool)         { p.active = a }

func (p *fakeProp) Rigidbody() Rigidbody {
	if p.body == nil {
		return nil
	}
	return p.body
}

// fakeAnimator implements AnimatorHost.
type fakeAnimator struct {
	params  AnimatorParams
	slots   []ItemSlot
	applied []netconfig.AnimatorFlag
}

func (a *fakeAnimator) AnimatorParameters() AnimatorParams { return a.params }

func (a *fakeAnimator) ApplyAnimatorParameters(p AnimatorParams, mask netconfig.AnimatorFlag) {
	a.params.Merge(p, mask)
	a.applied = append(a.applied, mask)
}

func (a *fakeAnimator) ItemSlotCount() int              { return len(a.slots) }
func (a *fakeAnimator) ItemSlot(i int) ItemSlot         { return a.slots[i] }
func (a *fakeAnimator) ApplyItemSlot(i int, s ItemSlot) { a.slots[i] = s }

type staticObservers []Observer

func (o staticObservers) Observers() []Observer { return o }
