package capture

import (
	"time"

	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/rs/zerolog"
)

// Transport records every successful send of the wrapped transport.
type Transport struct {
	replication.Transport
	w   *Writer
	now func() time.Time
	log zerolog.Logger
}

func NewTransport(inner replication.Transport, w *Writer, log zerolog.Logger) *Transport {
	return &Transport{Transport: inner, w: w, now: time.Now, log: log}
}

func (t *Transport) SendTo(to replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	if err := t.Transport.SendTo(to, name, payload, d); err != nil {
		return err
	}
	t.record(Record{Name: name, To: ids([]replication.ObserverID{to})}, payload, d)
	return nil
}

func (t *Transport) SendToMany(to []replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	if err := t.Transport.SendToMany(to, name, payload, d); err != nil {
		return err
	}
	t.record(Record{Name: name, To: ids(to)}, payload, d)
	return nil
}

func (t *Transport) SendToAll(name string, payload []byte, d netconfig.Delivery, except ...replication.ObserverID) error {
	if err := t.Transport.SendToAll(name, payload, d, except...); err != nil {
		return err
	}
	t.record(Record{Name: name, Broadcast: true, Except: ids(except)}, payload, d)
	return nil
}

func (t *Transport) record(r Record, payload []byte, d netconfig.Delivery) {
	r.Time = t.now()
	r.Delivery = d.String()
	r.Size = len(payload)
	r.Payload = payload
	if err := t.w.Record(r); err != nil {
		t.log.Warn().Err(err).Msg("capture record")
	}
}

func ids(in []replication.ObserverID) []uint64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]uint64, len(in))
	for i, id := range in {
		out[i] = uint64(id)
	}
	return out
}
