package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/logging"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when sending before the connection is up.
var ErrNotConnected = errors.New("not connected")

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoined
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Client manages the websocket connection to the server and implements
// replication.Transport for the client side. All shared fields are
// protected by mu (router callbacks run on necs goroutines); inbound
// messages are queued and dispatched by Poll on the loop goroutine.
type Client struct {
	mu sync.RWMutex

	state     ClientState
	lastError error
	accepted  messages.JoinAccepted
	conn      *websocket.Conn

	inbound  *inbox[any]
	handlers map[string]replication.Handler
	log      zerolog.Logger

	// OnJoined, OnSpawn and OnDespawn are called from Poll.
	OnJoined  func(messages.JoinAccepted)
	OnSpawn   func(messages.SpawnEvent)
	OnDespawn func(messages.DespawnEvent)
}

func NewClient(log zerolog.Logger) *Client {
	c := &Client{
		state:    StateDisconnected,
		handlers: make(map[string]replication.Handler),
		log:      logging.Component(log, "client"),
	}
	c.inbound = newInbox[any](inboundQueue, c.log)
	return c
}

// Connect dials the server in a background goroutine and initiates the join handshake.
func (c *Client) Connect(address, version, playerName string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		c.log.Info().Str("address", address).Msg("connected to server")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		if err := c.write(messages.JoinRequest{Version: version, PlayerName: playerName}); err != nil {
			c.setError(fmt.Errorf("send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		c.log.Info().
			Uint64("observer", msg.ObserverID).
			Str("server", msg.ServerName).
			Msg("join accepted")
		c.mu.Lock()
		c.accepted = msg
		c.state = StateJoined
		c.mu.Unlock()
		c.inbound.push(msg, false)
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		c.log.Warn().Str("reason", msg.Reason).Msg("join rejected")
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, msg messages.SyncFrame) {
		c.inbound.push(msg, droppable(msg))
	})

	router.On(func(_ *router.NetworkClient, msg messages.SpawnEvent) {
		c.inbound.push(msg, false)
	})

	router.On(func(_ *router.NetworkClient, msg messages.DespawnEvent) {
		c.inbound.push(msg, false)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		c.log.Info().Err(err).Msg("disconnected")
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		c.log.Warn().Err(err).Msg("client error")
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

// Dropped is how many unreliable frames were discarded because Poll fell
// behind.
func (c *Client) Dropped() uint64 { return c.inbound.Dropped() }

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// ObserverID is the id the server assigned, valid once joined.
func (c *Client) ObserverID() replication.ObserverID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return replication.ObserverID(c.accepted.ObserverID)
}

func (c *Client) Accepted() messages.JoinAccepted {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accepted
}

// Poll dispatches queued inbound messages without blocking, in arrival
// order, and returns how many it handled.
func (c *Client) Poll() int {
	n := 0
	for {
		select {
		case msg := <-c.inbound.ch:
			c.dispatch(msg)
			n++
		default:
			return n
		}
	}
}

func (c *Client) dispatch(msg any) {
	switch m := msg.(type) {
	case messages.JoinAccepted:
		if c.OnJoined != nil {
			c.OnJoined(m)
		}
	case messages.SpawnEvent:
		if c.OnSpawn != nil {
			c.OnSpawn(m)
		}
	case messages.DespawnEvent:
		if c.OnDespawn != nil {
			c.OnDespawn(m)
		}
	case messages.SyncFrame:
		h, ok := c.handlers[m.Name]
		if !ok {
			c.log.Trace().Str("name", m.Name).Msg("no handler")
			return
		}
		h(replication.ServerID, m.Payload)
	}
}

func (c *Client) write(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

// SendTo only reaches the server; clients have no direct links to each other.
func (c *Client) SendTo(to replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	if to != replication.ServerID {
		return fmt.Errorf("%w: %d", replication.ErrUnknownObserver, to)
	}
	return c.write(messages.SyncFrame{Name: name, Delivery: int(d), Payload: payload})
}

func (c *Client) SendToMany(to []replication.ObserverID, name string, payload []byte, d netconfig.Delivery) error {
	for _, id := range to {
		if err := c.SendTo(id, name, payload, d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SendToAll(name string, payload []byte, d netconfig.Delivery, except ...replication.ObserverID) error {
	if excluded(replication.ServerID, except) {
		return nil
	}
	return c.SendTo(replication.ServerID, name, payload, d)
}

func (c *Client) Handle(name string, h replication.Handler) { c.handlers[name] = h }

func (c *Client) Unhandle(name string) { delete(c.handlers, name) }

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
