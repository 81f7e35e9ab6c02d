package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const defaultWriteTimeout = 10 * time.Second

var ErrDeliveryFailed = errors.New("delivery failed")

// Socket is the write side of a duplex transport. *websocket.Conn satisfies it.
type Socket interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateAdmitted
	StateServing
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAdmitted:
		return "admitted"
	case StateServing:
		return "serving"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Connection struct {
	id           string
	userId       int64
	hasUser      bool
	connectedAt  time.Time
	writeTimeout time.Duration

	writeMu sync.Mutex
	socket  Socket
	failed  bool

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	lastActivityAt atomic.Int64
	state          atomic.Int32
	released       atomic.Bool
	closeOnce      sync.Once
}

type ConnectionOption func(*Connection)

func WithUserId(userId int64) ConnectionOption {
	return func(c *Connection) {
		c.userId = userId
		c.hasUser = true
	}
}

func WithWriteTimeout(timeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		if timeout > 0 {
			c.writeTimeout = timeout
		}
	}
}

func WithConnectionId(id string) ConnectionOption {
	return func(c *Connection) {
		c.id = id
	}
}

func NewConnection(socket Socket, opts ...ConnectionOption) *Connection {
	now := time.Now()

	c := &Connection{
		id:            gonanoid.Must(),
		connectedAt:   now,
		writeTimeout:  defaultWriteTimeout,
		socket:        socket,
		subscriptions: make(map[string]struct{}),
	}
	c.lastActivityAt.Store(now.UnixNano())
	c.state.Store(int32(StateConnecting))

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Connection) Id() string {
	return c.id
}

func (c *Connection) UserId() (int64, bool) {
	return c.userId, c.hasUser
}

func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

func (c *Connection) LastActivityAt() time.Time {
	return time.Unix(0, c.lastActivityAt.Load())
}

func (c *Connection) Touch() {
	c.lastActivityAt.Store(time.Now().UnixNano())
}

// Send writes v as one JSON frame. Writes are serialized, so frames reach the peer
// in the order Send was called. Once a write fails every later Send fails without
// touching the socket.
func (c *Connection) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.failed {
		return fmt.Errorf("%w: connection %s already failed", ErrDeliveryFailed, c.id)
	}

	if err := c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.failed = true

		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if err := c.socket.WriteJSON(v); err != nil {
		c.failed = true

		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	c.Touch()

	return nil
}

// Close closes the underlying socket once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.socket.Close()
	})

	return err
}

func (c *Connection) AddSubscription(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions[topic] = struct{}{}
}

func (c *Connection) RemoveSubscription(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subscriptions, topic)
}

func (c *Connection) HasSubscription(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.subscriptions[topic]

	return ok
}

func (c *Connection) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}

	return topics
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// Advance moves the connection forward to state. States only move forward and
// nothing leaves StateClosed; it reports whether the state changed.
func (c *Connection) Advance(state State) bool {
	for {
		current := c.state.Load()
		if State(current) >= state || State(current) == StateClosed {
			return false
		}

		if c.state.CompareAndSwap(current, int32(state)) {
			return true
		}
	}
}

// claimRelease returns true for exactly one caller over the connection lifetime.
func (c *Connection) claimRelease() bool {
	return c.released.CompareAndSwap(false, true)
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
