package session

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/snapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
)

// Network is the network layer beneath the broker connection.
type Network interface {
	Status() netif.State
	Reconnect(ctx context.Context) error
}

// Broker is the publish/subscribe transport.
type Broker interface {
	// Connect makes one connection attempt and returns the CONNACK code.
	Connect(ctx context.Context) (byte, error)
	IsConnected() bool
	Secure() bool
	Ping(ctx context.Context) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ConnectionManager owns the connection state machine.
//
// Status, Keepalive and the attempt bookkeeping are driven by the run loop
// only. Current may be read from any goroutine.
type ConnectionManager struct {
	net       Network
	broker    Broker
	clock     Clock
	keepalive time.Duration
	logger    Logger

	// Run-loop state.
	attempted   bool
	lastAttempt time.Time
	lastPing    time.Time
	permanent   bool
	lost        bool
	observed    Status

	mu       sync.RWMutex
	current  Status
	lastCode byte
	onChange func(from, to Status)
}

// NewConnectionManager creates a manager for net and broker.
func NewConnectionManager(net Network, broker Broker, clock Clock, keepalive time.Duration) *ConnectionManager {
	return &ConnectionManager{
		net:       net,
		broker:    broker,
		clock:     clock,
		keepalive: keepalive,
		logger:    noopLogger{},
		observed:  StatusIdle,
		current:   StatusIdle,
	}
}

// SetLogger sets the logger for the manager.
func (m *ConnectionManager) SetLogger(logger Logger) {
	m.logger = logger
}

// OnChange registers fn to be called on every status transition.
func (m *ConnectionManager) OnChange(fn func(from, to Status)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Current returns the last reported status without side effects.
func (m *ConnectionManager) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// LastReturnCode returns the CONNACK code of the last attempt.
func (m *ConnectionManager) LastReturnCode() byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCode
}

// Status evaluates the network layer first and the broker only when the
// network is up, so a network failure is never masked by broker state.
func (m *ConnectionManager) Status(ctx context.Context) Status {
	switch m.net.Status() {
	case netif.Connected:
	case netif.ConnectFailed:
		return m.report(StatusNetConnectFailed)
	default:
		return m.report(StatusNetDisconnected)
	}
	switch m.Current() {
	case StatusIdle, StatusNetDisconnected, StatusNetConnectFailed:
		m.report(StatusNetConnected)
	}
	return m.report(m.brokerStatus(ctx))
}

// brokerStatus evaluates the broker layer, attempting a connect when allowed.
func (m *ConnectionManager) brokerStatus(ctx context.Context) Status {
	if m.permanent {
		return StatusConnectFailed
	}
	if m.broker.IsConnected() && !m.lost {
		m.observed = m.connectedStatus()
		return m.observed
	}

	now := m.clock.Now()
	if m.attempted && now.Sub(m.lastAttempt) < m.keepalive {
		// Throttled: report what the last attempt saw.
		if m.observed.Online() {
			m.observed = StatusDisconnected
		}
		return m.observed
	}

	m.attempted = true
	m.lastAttempt = now
	m.lost = false
	m.report(StatusConnecting)

	code, err := m.broker.Connect(ctx)
	m.mu.Lock()
	m.lastCode = code
	m.mu.Unlock()

	switch {
	case err == nil && code == mqtt.ReturnAccepted:
		m.lastPing = m.clock.Now()
		m.observed = m.connectedStatus()
	case isPermanent(code):
		m.permanent = true
		m.logger.Error("broker refused connection permanently", "return_code", code, "error", err)
		m.observed = StatusConnectFailed
	case isTransient(code):
		m.logger.Warn("broker temporarily unavailable, backing off",
			"return_code", code, "backoff", m.keepalive)
		if err := m.clock.Sleep(ctx, m.keepalive); err != nil {
			m.logger.Debug("backoff interrupted", "error", err)
		}
		m.observed = StatusDisconnected
	default:
		m.logger.Warn("broker connection attempt failed", "return_code", code, "error", err)
		m.observed = StatusDisconnected
	}
	return m.observed
}

func (m *ConnectionManager) connectedStatus() Status {
	if m.broker.Secure() {
		return StatusConnected
	}
	return StatusConnectedInsecure
}

// Keepalive pings the broker when more than one keepalive interval has
// passed since the last ping. It reports whether a ping was sent. A failed
// ping marks the broker disconnected so the next Status reconnects.
func (m *ConnectionManager) Keepalive(ctx context.Context) bool {
	if !m.broker.IsConnected() || m.lost {
		return false
	}
	now := m.clock.Now()
	if now.Sub(m.lastPing) <= m.keepalive {
		return false
	}
	m.lastPing = now
	if err := m.broker.Ping(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("broker ping failed, connection lost", "error", err)
		m.lost = true
		m.observed = StatusDisconnected
		m.report(StatusDisconnected)
	}
	return true
}

func (m *ConnectionManager) report(s Status) Status {
	m.mu.Lock()
	prev := m.current
	m.current = s
	fn := m.onChange
	m.mu.Unlock()

	if prev != s && fn != nil {
		fn(prev, s)
	}
	return s
}

// isPermanent reports configuration errors that retrying cannot fix.
func isPermanent(code byte) bool {
	switch code {
	case mqtt.ReturnBadProtocolVersion, mqtt.ReturnIDRejected,
		mqtt.ReturnBadCredentials, mqtt.ReturnNotAuthorized:
		return true
	}
	return false
}

// isTransient reports refusals that clear on their own, including bans.
func isTransient(code byte) bool {
	switch code {
	case mqtt.ReturnServerUnavailable, mqtt.ReturnThrottled, mqtt.ReturnBanned:
		return true
	}
	return false
}
