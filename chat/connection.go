package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/models"
)

// Handler receives the payload of an inbound event
type Handler func(data json.RawMessage)

type listener struct {
	id uint64
	fn Handler
}

type statusListener struct {
	id uint64
	fn func(connected bool)
}

// Connection owns the single realtime connection of a session. It connects when
// a credential is set and tears the connection down when the credential changes
// or is cleared. Failed connects are not retried.
//
// Inbound events are dispatched from one read goroutine in arrival order, so
// handlers must not block for long.
type Connection struct {
	url    string
	dialer Dialer
	log    *zap.SugaredLogger

	mu        sync.Mutex
	cred      Credential
	sock      Socket
	gen       uint64
	connected bool

	writeMu sync.Mutex

	lmu      sync.Mutex
	nextID   uint64
	handlers map[string][]listener
	status   []statusListener
}

// NewConnection returns a disconnected Connection for the given socket URL
func NewConnection(socketURL string, dialer Dialer, log *zap.SugaredLogger) *Connection {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Connection{
		url:      socketURL,
		dialer:   dialer,
		log:      log,
		handlers: make(map[string][]listener),
	}
}

// SetCredential replaces the session credential. Any existing connection is
// closed first; a non-empty credential then dials a new one. Setting the same
// credential while connected is a no-op.
func (c *Connection) SetCredential(ctx context.Context, cred Credential) error {
	c.mu.Lock()
	if c.sock != nil && c.cred == cred {
		c.mu.Unlock()
		return nil
	}
	old := c.sock
	wasConnected := c.connected
	c.sock = nil
	c.connected = false
	c.cred = cred
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if wasConnected {
		c.notifyStatus(false)
	}
	if cred.Empty() {
		return nil
	}

	sock, err := c.dialer.Dial(ctx, c.url, cred.Token)
	if err != nil {
		c.log.Errorw("chat connection failed", "url", c.url, "error", err)
		return fmt.Errorf("connect chat: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = sock.Close()
		return ErrSuperseded
	}
	c.sock = sock
	c.connected = true
	c.mu.Unlock()

	c.log.Debugw("chat connected", "url", c.url, "userID", cred.UserID)
	c.notifyStatus(true)
	go c.readLoop(sock, gen)
	return nil
}

// Credential returns the credential currently in use
func (c *Connection) Credential() Credential {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cred
}

// Connected reports whether the realtime connection is live
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears down the connection and forgets the credential
func (c *Connection) Close() error {
	return c.SetCredential(context.Background(), Credential{})
}

// Emit sends an event with the given payload
func (c *Connection) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return ErrNotConnected
	}

	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := sock.WriteJSON(env); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// On registers a handler for an inbound event and returns a func removing it
func (c *Connection) On(event string, h Handler) (remove func()) {
	c.lmu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], listener{id: id, fn: h})
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		ls := c.handlers[event]
		for i, l := range ls {
			if l.id == id {
				c.handlers[event] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// OnStatus registers a func called whenever the connected flag flips
func (c *Connection) OnStatus(fn func(connected bool)) (remove func()) {
	c.lmu.Lock()
	c.nextID++
	id := c.nextID
	c.status = append(c.status, statusListener{id: id, fn: fn})
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, l := range c.status {
			if l.id == id {
				c.status = append(c.status[:i:i], c.status[i+1:]...)
				return
			}
		}
	}
}

func (c *Connection) readLoop(sock Socket, gen uint64) {
	for {
		var env models.Envelope
		if err := sock.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.log.Warnw("dropping malformed chat frame", "error", err)
				continue
			}
			c.lost(sock, gen, err)
			return
		}
		c.dispatch(env)
	}
}

func (c *Connection) lost(sock Socket, gen uint64, err error) {
	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.sock = nil
		c.connected = false
	}
	c.mu.Unlock()

	_ = sock.Close()
	if !current {
		return
	}
	c.log.Errorw("chat connection lost", "url", c.url, "error", err)
	c.notifyStatus(false)
}

func (c *Connection) dispatch(env models.Envelope) {
	c.lmu.Lock()
	ls := append([]listener(nil), c.handlers[env.Event]...)
	c.lmu.Unlock()

	if env.Event == models.EventError && len(ls) == 0 {
		c.log.Warnw("chat server reported an error", "data", string(env.Data))
	}
	for _, l := range ls {
		l.fn(env.Data)
	}
}

func (c *Connection) notifyStatus(connected bool) {
	c.lmu.Lock()
	ls := append([]statusListener(nil), c.status...)
	c.lmu.Unlock()

	for _, l := range ls {
		l.fn(connected)
	}
}
