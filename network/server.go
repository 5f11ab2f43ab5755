package network

import (
	"fmt"
	"sync"

	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
)

type serverEvent struct {
	client *router.NetworkClient
	msg    any // messages.SyncFrame, messages.JoinRequest, connected or disconnected
}

type connected struct{}

type disconnected struct{ err error }

// ServerTransport carries replication frames to websocket clients through
// the necs router. Router callbacks run on necs goroutines; they only queue
// events, which Poll dispatches on the loop goroutine.
//
// Every delivery mode maps to the same ordered websocket stream.
type ServerTransport struct {
	mu      sync.RWMutex
	clients map[replication.ObserverID]*router.NetworkClient
	ids     map[*router.NetworkClient]replication.ObserverID
	nextID  replication.ObserverID

	handlers map[string]replication.Handler
	events   *inbox[serverEvent]
	log      zerolog.Logger

	// OnJoin is called from Poll for each join request. Returning an error
	// rejects the join with the error as the reason.
	OnJoin func(id replication.ObserverID, req messages.JoinRequest) (messages.JoinAccepted, error)
	// OnJoined is called from Poll once the accepted observer is reachable
	// through Send.
	OnJoined func(id replication.ObserverID)
	// OnLeave is called from Poll when a joined client disconnects.
	OnLeave func(id replication.ObserverID)

	transport *transports.WsServerTransport
}

func NewServerTransport(log zerolog.Logger) *ServerTransport {
	s := &ServerTransport{
		clients:  make(map[replication.ObserverID]*router.NetworkClient),
		ids:      make(map[*router.NetworkClient]replication.ObserverID),
		handlers: make(map[string]replication.Handler),
		log:      logging.Component(log, "transport"),
	}
	s.events = newInbox[serverEvent](inboundQueue, s.log)
	s.setupRouterCallbacks()
	return s
}

func (s *ServerTransport) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.events.push(serverEvent{client: client, msg: connected{}}, false)
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.events.push(serverEvent{client: client, msg: disconnected{err: err}}, false)
	})

	router.On(func(client *router.NetworkClient, req messages.JoinRequest) {
		s.events.push(serverEvent{client: client, msg: req}, false)
	})

	router.On(func(client *router.NetworkClient, frame messages.SyncFrame) {
		s.events.push(serverEvent{client: client, msg: frame}, droppable(frame))
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn().Err(err).Str("client", client.Id()).Msg("client error")
	})
}

// Dropped is how many unreliable frames were discarded because Poll fell
// behind.
func (s *ServerTransport) Dropped() uint64 { return s.events.Dropped() }

// Start listens on port and blocks until the listener fails.
func (s *ServerTransport) Start(port uint) error {
	s.transport = transports.NewWsServerTransport(port, "", nil)
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("websocket server on port %d: %w", port, err)
	}
	return nil
}

// Poll dispatches queued router events without blocking and returns how
// many it handled.
func (s *ServerTransport) Poll() int {
	n := 0
	for {
		select {
		case e := <-s.events.ch:
			s.dispatch(e)
			n++
		default:
			return n
		}
	}
}

func (s *ServerTransport) dispatch(e serverEvent) {
	switch msg := e.msg.(type) {
	case connected:
		s.log.Info().Str("client", e.client.Id()).Msg("client connected")
	case disconnected:
		id, ok := s.forget(e.client)
		ev := s.log.Info().Str("client", e.client.Id())
		if msg.err != nil {
			ev = ev.Err(msg.err)
		}
		ev.Msg("client disconnected")
		if ok && s.OnLeave != nil {
			s.OnLeave(id)
		}
	case messages.JoinRequest:
		s.join(e.client, msg)
	case messages.SyncFrame:
		id, ok := s.observer(e.client)
		if !ok {
			s.events.log.Debug().Str("name", msg.Name).Msg("frame from client that has not joined")
			return
		}
		h, ok := s.handlers[msg.Name]
		if !ok {
			s.log.Trace().Str("name", msg.Name).Msg("no handler")
			return
		}
		h(id, msg.Payload)
	}
}

func (s *ServerTransport) join(client *router.NetworkClient, req messages.JoinRequest) {
	if _, ok := s.observer(client); ok {
		return
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	accepted := messages.JoinAccepted{ObserverID: uint64(id)}
	if s.OnJoin != nil {
		var err error
		accepted, err = s.OnJoin(id, req)
		if err != nil {
			s.log.Info().Err(err).Str("player", req.PlayerName).Msg("join rejected")
			if err := client.SendMessage(messages.JoinRejected{Reason: err.Error()}); err != nil {
				s.log.Warn().Err(err).Msg("send join rejected")
			}
			return
		}
		accepted.ObserverID = uint64(id)
	}

	s.mu.Lock()
	s.clients[id] = client
	s.ids[client] = id
	s.mu.Unlock()

	if err := client.SendMessage(accepted); err != nil {
		s.log.Warn().Err(err).Msg("send join accepted")
	}
	s.log.Info().Uint64("observer", uint64(id)).Str("player", req.PlayerName).Msg("observer joined")
	if s.OnJoined != nil {
		s.OnJoined(id)
	}
}

func (s *ServerTransport) observer(client *router.NetworkClient) (replication.ObserverID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[client]
	return id, ok
}

func (s *ServerTransport) forget(client *router.NetworkClient) (replication.ObserverID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[client]
	if ok {
		delete(s.ids, client)
		delete(s.clients, id)
	}
	return id, ok
}

// Observers lists joined observer ids.
func (s *ServerTransport) Observers() []replication.ObserverID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]replication.ObserverID, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, id)
	}
	return out
}

// Send writes any registered message to one observer.
func (s *ServerTransport) Send(to replication.ObserverID, msg any) error {
	s.mu.RLock()
	client, ok := s.clients[to]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", replication.ErrUnknownObserver, to)
	}
	return client.SendMessage(msg)
}

// Broadcast writes msg to every joined observer except those listed.
func (s *ServerTransport) Broadcast(msg any, except ...replication.ObserverID) error {
	s.mu.RLock()
	targets := make([]*router.NetworkClient, 0, len(s.clients))
	for id, c := range s.clients {
		if !excluded(id, except) {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	var firstErr error
	for _, c := range targets {
		if err := c.SendMessage(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *ServerTransport) SendTo(to replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	return s.Send(to, messages.SyncFrame{Name: name, Delivery: int(d), Payload: payload})
}

func (s *ServerTransport) SendToMany(to []replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	frame := messages.SyncFrame{Name: name, Delivery: int(d), Payload: payload}
	var firstErr error
	for _, id := range to {
		if err := s.Send(id, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *ServerTransport) SendToAll(name string, payload []byte, d netconfig.Delivery, except ...replication.ObserverID) error {
	return s.Broadcast(messages.SyncFrame{Name: name, Delivery: int(d), Payload: payload}, except...)
}

func (s *ServerTransport) Handle(name string, h replication.Handler) { s.handlers[name] = h }

func (s *ServerTransport) Unhandle(name string) { delete(s.handlers, name) }
