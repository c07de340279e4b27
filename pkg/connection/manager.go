package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scim-im/scim-ipc/pkg/log"
)

// Manager errors.
var (
	ErrClosed           = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrRetriesExhausted = errors.New("connection attempts exhausted")
)

// State is the connection state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes the connection, handshake included.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// Backoff shapes the retry delays.
	Backoff BackoffConfig

	// NoReconnect turns NotifyConnectionLost into a plain disconnect.
	NoReconnect bool

	// Logger receives connection state events (optional).
	Logger log.Logger

	// ConnID identifies the connection in log events.
	ConnID string

	// OnStateChange is called after every transition (optional).
	OnStateChange func(old, new State)

	// OnReconnecting is called before each retry delay (optional).
	OnReconnecting func(attempt int, delay time.Duration)
}

// Manager tracks one client connection and reconnects it on demand.
type Manager struct {
	connect ConnectFunc
	config  Config
	backoff *Backoff

	mu    sync.Mutex
	state State

	lost      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager in StateDisconnected.
func NewManager(connect ConnectFunc, config Config) *Manager {
	return &Manager{
		connect: connect,
		config:  config,
		backoff: NewBackoff(config.Backoff),
		state:   StateDisconnected,
		lost:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the state is StateConnected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Connect makes one connection attempt.
func (m *Manager) Connect(ctx context.Context) error {
	return m.attempt(ctx, StateDisconnected)
}

// ConnectWithRetry calls Connect until it succeeds, ctx ends or
// maxAttempts attempts failed (0 = no limit).
func (m *Manager) ConnectWithRetry(ctx context.Context, maxAttempts int) error {
	for attempt := 1; ; attempt++ {
		err := m.Connect(ctx)
		if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, ErrAlreadyConnected) {
			return err
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := m.backoff.Next()
		if m.config.OnReconnecting != nil {
			m.config.OnReconnecting(attempt, delay)
		}
		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// attempt runs the connect function once. On failure the state becomes
// failState.
func (m *Manager) attempt(ctx context.Context, failState State) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.changed(old, StateConnecting, "")

	err := m.connect(ctx)

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	next := StateConnected
	if err != nil {
		next = failState
	} else {
		m.backoff.Reset()
	}
	m.state = next
	m.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.changed(StateConnecting, next, reason)
	return err
}

// NotifyConnectionLost reports that the connection broke. Unless
// reconnection is disabled, Run starts retrying.
func (m *Manager) NotifyConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	next := StateReconnecting
	if m.config.NoReconnect {
		next = StateDisconnected
	}
	m.state = next
	m.mu.Unlock()

	m.changed(StateConnected, next, "connection lost")
	if next == StateReconnecting {
		select {
		case m.lost <- struct{}{}:
		default:
		}
	}
}

// Run reconnects after each NotifyConnectionLost until ctx ends or the
// manager is closed.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closed:
			return nil
		case <-m.lost:
		}
		if err := m.reconnect(ctx); err != nil {
			return nil
		}
	}
}

func (m *Manager) reconnect(ctx context.Context) error {
	for m.State() == StateReconnecting {
		delay := m.backoff.Next()
		if m.config.OnReconnecting != nil {
			m.config.OnReconnecting(m.backoff.Attempts(), delay)
		}
		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
		if err := m.attempt(ctx, StateReconnecting); errors.Is(err, ErrClosed) {
			return err
		}
	}
	return nil
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.closed:
		return ErrClosed
	case <-t.C:
		return nil
	}
}

// Close stops reconnection. It does not close the underlying connection.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		old := m.state
		m.state = StateClosed
		m.mu.Unlock()

		close(m.closed)
		m.changed(old, StateClosed, "")
	})
}

func (m *Manager) changed(old, new State, reason string) {
	if m.config.OnStateChange != nil {
		m.config.OnStateChange(old, new)
	}
	if m.config.Logger == nil {
		return
	}
	m.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: m.config.ConnID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: new.String(),
			Reason:   reason,
		},
	})
}
