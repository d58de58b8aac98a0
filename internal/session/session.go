package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/snapper/internal/identity"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
	"github.com/nerrad567/snapper/internal/pin"
	"github.com/nerrad567/snapper/internal/signal"
	"github.com/nerrad567/snapper/internal/topics"
)

// Logger defines the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Telemetry records pin activity and status transitions.
type Telemetry interface {
	WritePinEvent(pinName, direction string, value int, at time.Time)
	WriteStatus(sessionID, code string, fatal bool, at time.Time)
}

// Notifier pushes live events to local observers.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Notifiers broadcasts to each of its members in order.
type Notifiers []Notifier

// Broadcast implements Notifier.
func (ns Notifiers) Broadcast(channel string, payload any) {
	for _, n := range ns {
		n.Broadcast(channel, payload)
	}
}

// Notifier channels.
const (
	ChannelStatus   = "status.changed"
	ChannelPinEvent = "pin.event"
)

// Pin event directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// bringUpPoll is the spacing of status polls while waiting for the broker.
const bringUpPoll = 500 * time.Millisecond

// Config holds the per-session parameters.
type Config struct {
	Identity       identity.Identity
	Username       string
	Version        Version
	QoS            byte
	KeepAlive      time.Duration
	ServiceTimeout time.Duration
	NetworkTimeout time.Duration
	NetworkPoll    time.Duration
	Retries        int
	AttemptTimeout time.Duration
	FailureLog     time.Duration
	InboundPolicy  Policy
	RestorePins    bool
	EncodeCapacity int
}

// Deps holds the session's collaborators. Clock, Logger, Telemetry and
// Notifier are optional.
type Deps struct {
	Network    Network
	Broker     Broker
	Dispatcher *pin.Dispatcher
	Clock      Clock
	Logger     Logger
	Telemetry  Telemetry
	Notifier   Notifier
}

// PinEventRecord is a pin value pushed to observers.
type PinEventRecord struct {
	Pin       string    `json:"pin"`
	Value     int       `json:"value"`
	Direction string    `json:"direction"`
	At        time.Time `json:"at"`
}

// Counters tracks message traffic.
type Counters struct {
	Decoded      uint64 `json:"decoded"`
	DecodeErrors uint64 `json:"decode_errors"`
	Dispatched   uint64 `json:"dispatched"`
	Published    uint64 `json:"published"`
	PublishErrs  uint64 `json:"publish_errors"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	SessionID   string      `json:"session_id"`
	ClientID    string      `json:"client_id"`
	BoardID     string      `json:"board_id"`
	Status      Status      `json:"status"`
	StatusText  string      `json:"status_text"`
	Board       BoardStatus `json:"board"`
	BoardText   string      `json:"board_text"`
	Fatal       bool        `json:"fatal"`
	ReturnCode  byte        `json:"return_code"`
	GPIOPins    int32       `json:"gpio_pins"`
	AnalogPins  int32       `json:"analog_pins"`
	StartedAt   time.Time   `json:"started_at"`
	Inbox       InboxStats  `json:"inbox"`
	Counters    Counters    `json:"counters"`
	Policy      string      `json:"inbound_policy"`
	LastFailure string      `json:"last_failure,omitempty"`
}

// Session is the device's broker session.
type Session struct {
	id         string
	cfg        Config
	topics     topics.Set
	net        Network
	broker     Broker
	dispatcher *pin.Dispatcher
	conn       *ConnectionManager
	registrar  *Registrar
	inbox      *Inbox
	encoder    *signal.Encoder
	clock      Clock
	logger     Logger
	telemetry  Telemetry
	notifier   Notifier

	mu          sync.RWMutex
	board       BoardStatus
	registered  signal.DescriptionResponse
	startedAt   time.Time
	counters    Counters
	lastFailure error
}

// New builds a session. It fails with ErrTopicsIncomplete when the topic
// set cannot be derived; nothing is subscribed or published in that case.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Network == nil || deps.Broker == nil || deps.Dispatcher == nil {
		return nil, errors.New("session: network, broker and dispatcher are required")
	}

	set, err := topics.Build(cfg.Username, cfg.Identity.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTopicsIncomplete, err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	var logger Logger = noopLogger{}
	if deps.Logger != nil {
		logger = deps.Logger
	}
	capacity := cfg.EncodeCapacity
	if capacity <= 0 {
		capacity = signal.DefaultCapacity
	}

	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		topics:     set,
		net:        deps.Network,
		broker:     deps.Broker,
		dispatcher: deps.Dispatcher,
		inbox:      NewInbox(cfg.InboundPolicy),
		encoder:    signal.NewEncoder(capacity),
		clock:      clock,
		telemetry:  deps.Telemetry,
		notifier:   deps.Notifier,
	}
	s.logger = withAttrs(logger, "session_id", s.id)
	deps.Dispatcher.SetClock(clock.Now)

	s.conn = NewConnectionManager(deps.Network, deps.Broker, clock, cfg.KeepAlive)
	s.conn.SetLogger(s.logger)
	s.conn.OnChange(s.statusChanged)

	s.registrar = NewRegistrar(deps.Broker, set, cfg.Identity, cfg.Version, cfg.Retries, cfg.AttemptTimeout, clock)
	s.registrar.SetLogger(s.logger)
	s.registrar.SetQoS(cfg.QoS)

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Topics returns the session's topic set.
func (s *Session) Topics() topics.Set { return s.topics }

// Connection returns the connection manager.
func (s *Session) Connection() *ConnectionManager { return s.conn }

// Inbox returns the inbound slot.
func (s *Session) Inbox() *Inbox { return s.inbox }

// Pins returns the configured pins.
func (s *Session) Pins() []pin.Config { return s.dispatcher.Registry().List() }

// Start brings the session up: it waits for the broker, subscribes,
// registers the board and optionally restores persisted pins.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("starting session",
		"client_id", s.cfg.Identity.ClientID, "inbound_policy", s.cfg.InboundPolicy.String())

	for {
		st := s.conn.Status(ctx)
		if st.Online() {
			break
		}
		if st.Fatal() {
			return s.fail(fmt.Errorf("%w: return code %d", ErrBrokerRejected, s.conn.LastReturnCode()))
		}
		if err := s.clock.Sleep(ctx, bringUpPoll); err != nil {
			return err
		}
	}

	if err := s.subscribe(); err != nil {
		return err
	}

	s.setBoard(BoardRegistering)
	resp, err := s.registrar.Register(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(err)
	}

	s.mu.Lock()
	s.registered = resp
	s.mu.Unlock()
	if resp.TotalGPIOPins > 0 {
		s.dispatcher.Registry().SetLimit(int(resp.TotalGPIOPins))
	}
	s.setBoard(BoardOperational)

	if s.cfg.RestorePins {
		if _, err := s.dispatcher.Restore(ctx); err != nil {
			s.logger.Warn("restoring pins failed", "error", err)
		}
	}
	return nil
}

func (s *Session) subscribe() error {
	if err := s.broker.Subscribe(s.topics.DescriptionStatus, s.cfg.QoS, s.registrar.HandleResponse); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topics.DescriptionStatus, err)
	}
	err := s.broker.Subscribe(s.topics.SignalBroker, s.cfg.QoS, func(topic string, payload []byte) error {
		if !s.inbox.Offer(topic, payload, s.clock.Now()) {
			s.logger.Warn("inbound message dropped, previous message still pending", "topic", topic)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topics.SignalBroker, err)
	}
	return nil
}

// Run repeats Step until ctx is done or a fatal error occurs. It returns
// nil when ctx ends.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step runs one loop iteration.
func (s *Session) Step(ctx context.Context) error {
	s.checkNetwork(ctx)

	st := s.conn.Status(ctx)
	if st.Fatal() {
		return s.fail(fmt.Errorf("%w: return code %d", ErrBrokerRejected, s.conn.LastReturnCode()))
	}
	s.conn.Keepalive(ctx)

	if s.inbox.Wait(ctx, s.clock, s.cfg.ServiceTimeout) {
		if msg, ok := s.inbox.Take(); ok {
			s.process(ctx, msg)
		}
	}

	if st.Online() {
		for _, r := range s.dispatcher.PollInputs() {
			s.publishReading(r)
		}
	}
	return ctx.Err()
}

// checkNetwork asks the network layer to recover and waits a bounded time
// for the whole stack to come back.
func (s *Session) checkNetwork(ctx context.Context) {
	if s.net.Status() == netif.Connected {
		return
	}
	if err := s.net.Reconnect(ctx); err != nil {
		s.logger.Warn("network reconnect failed", "error", err)
	}

	deadline := s.clock.Now().Add(s.cfg.NetworkTimeout)
	for s.clock.Now().Before(deadline) {
		if s.conn.Status(ctx).Online() {
			return
		}
		if err := s.clock.Sleep(ctx, s.cfg.NetworkPoll); err != nil {
			return
		}
	}
}

// process decodes one inbound message and dispatches its elements.
func (s *Session) process(ctx context.Context, msg Inbound) {
	res, err := signal.Decode(msg.Payload, &dispatch{ctx: ctx, s: s})

	s.mu.Lock()
	s.counters.Dispatched += uint64(res.Dispatched) //nolint:gosec // non-negative count
	if err != nil {
		s.counters.DecodeErrors++
	} else {
		s.counters.Decoded++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("dropping signal message",
			"topic", msg.Topic, "variant", res.Variant.String(),
			"dispatched", res.Dispatched, "error", err)
		return
	}
	s.logger.Debug("signal message processed",
		"variant", res.Variant.String(), "elements", res.Dispatched)
}

// dispatch routes decoded elements to the pin dispatcher.
type dispatch struct {
	ctx context.Context
	s   *Session
}

func (d *dispatch) HandlePinConfig(req signal.PinConfigRequest) error {
	return d.s.dispatcher.ApplyPinConfig(d.ctx, req)
}

func (d *dispatch) HandlePinEvent(ev signal.PinEvent) error {
	if err := d.s.dispatcher.ApplyPinEvent(d.ctx, ev); err != nil {
		return err
	}
	if ref, err := signal.ParsePinRef(ev.PinName); err == nil && ref.Class == signal.ClassDigital {
		v, _ := ev.Value() //nolint:errcheck // validated by ApplyPinEvent
		d.s.recordPin(ref.String(), v, DirectionInbound, d.s.clock.Now())
	}
	return nil
}

// publishReading encodes one input reading and publishes it.
func (s *Session) publishReading(r pin.Reading) {
	msg := s.dispatcher.BuildPinEvent(signal.ModeDigital, r.Pin, r.Value)
	b, err := s.encoder.Encode(msg)
	if err != nil {
		s.logger.Error("encoding pin event failed", "pin", r.Pin, "error", err)
		return
	}
	if err := s.broker.Publish(s.topics.SignalDevice, b, s.cfg.QoS, false); err != nil {
		s.mu.Lock()
		s.counters.PublishErrs++
		s.mu.Unlock()
		s.logger.Warn("publishing pin event failed", "pin", r.Pin, "error", err)
		return
	}

	s.mu.Lock()
	s.counters.Published++
	s.mu.Unlock()
	s.recordPin(signal.DigitalPin(r.Pin).String(), r.Value, DirectionOutbound, r.At)
}

func (s *Session) recordPin(name string, value int, direction string, at time.Time) {
	if s.telemetry != nil {
		s.telemetry.WritePinEvent(name, direction, value, at)
	}
	if s.notifier != nil {
		s.notifier.Broadcast(ChannelPinEvent, PinEventRecord{Pin: name, Value: value, Direction: direction, At: at})
	}
}

// Halt holds the session in its terminal failed state, reporting the
// failure every FailureLog interval until ctx is done.
func (s *Session) Halt(ctx context.Context, cause error) {
	s.fail(cause) //nolint:errcheck // returns cause
	interval := s.cfg.FailureLog
	if interval <= 0 {
		interval = 10 * time.Second //nolint:mnd // reporting cadence
	}
	for {
		s.logger.Error("session halted, operator intervention required",
			"error", cause, "status", s.conn.Current().Code(), "board", s.Board().Code())
		if err := s.clock.Sleep(ctx, interval); err != nil {
			return
		}
	}
}

// fail records a fatal error and marks the board failed.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.lastFailure = err
	s.mu.Unlock()
	s.setBoard(BoardFailed)
	return err
}

// Board returns the registration state.
func (s *Session) Board() BoardStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

func (s *Session) setBoard(b BoardStatus) {
	s.mu.Lock()
	prev := s.board
	s.board = b
	s.mu.Unlock()
	if prev == b {
		return
	}
	s.logger.Info("board status changed", "from", prev.Code(), "to", b.Code())
	s.publishStatus()
}

func (s *Session) statusChanged(from, to Status) {
	if to.Fatal() {
		s.logger.Error("status changed", "from", from.Code(), "status", to.Code(), "detail", to.String())
	} else {
		s.logger.Info("status changed", "from", from.Code(), "status", to.Code())
	}
	s.publishStatus()
}

func (s *Session) publishStatus() {
	if s.telemetry == nil && s.notifier == nil {
		return
	}
	snap := s.Snapshot()
	if s.telemetry != nil {
		s.telemetry.WriteStatus(snap.SessionID, snap.Status.Code()+"/"+snap.Board.Code(), snap.Fatal, s.clock.Now())
	}
	if s.notifier != nil {
		s.notifier.Broadcast(ChannelStatus, snap)
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	st := s.conn.Current()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:  s.id,
		ClientID:   s.cfg.Identity.ClientID,
		BoardID:    s.cfg.Identity.BoardID,
		Status:     st,
		StatusText: st.String(),
		Board:      s.board,
		BoardText:  s.board.String(),
		Fatal:      st.Fatal() || s.board.Fatal(),
		ReturnCode: s.conn.LastReturnCode(),
		GPIOPins:   s.registered.TotalGPIOPins,
		AnalogPins: s.registered.TotalAnalogPins,
		StartedAt:  s.startedAt,
		Inbox:      s.inbox.Stats(),
		Counters:   s.counters,
		Policy:     s.cfg.InboundPolicy.String(),
	}
	if s.lastFailure != nil {
		snap.LastFailure = s.lastFailure.Error()
	}
	return snap
}

// attrLogger prepends fixed attributes to every call.
type attrLogger struct {
	next  Logger
	attrs []any
}

func withAttrs(l Logger, attrs ...any) Logger {
	return attrLogger{next: l, attrs: attrs}
}

func (l attrLogger) with(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	return append(append(out, l.attrs...), args...)
}

func (l attrLogger) Debug(msg string, args ...any) { l.next.Debug(msg, l.with(args)...) }
func (l attrLogger) Info(msg string, args ...any)  { l.next.Info(msg, l.with(args)...) }
func (l attrLogger) Warn(msg string, args ...any)  { l.next.Warn(msg, l.with(args)...) }
func (l attrLogger) Error(msg string, args ...any) { l.next.Error(msg, l.with(args)...) }
