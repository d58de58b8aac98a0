package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/snapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances instantly: Sleep and After move time forward by the
// requested duration and return at once.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeNetwork reports a settable state.
type fakeNetwork struct {
	mu         sync.Mutex
	state      netif.State
	reconnects int
}

func (n *fakeNetwork) Status() netif.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *fakeNetwork) Set(s netif.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = s
}

func (n *fakeNetwork) Reconnect(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconnects++
	return nil
}

type published struct {
	topic   string
	payload []byte
}

// networkError is a return code outside the CONNACK range, as reported for
// a failed TCP or TLS dial.
const networkError byte = 0xFE

// fakeBroker scripts CONNACK codes. Once the script runs out every attempt
// is accepted.
type fakeBroker struct {
	mu        sync.Mutex
	codes     []byte
	connected bool
	secure    bool
	connects  int
	pings     int
	pingErr   error
	subs      map[string]mqtt.MessageHandler
	published []published
	onPublish func(topic string, payload []byte)
	subErr    error
}

func newFakeBroker(codes ...byte) *fakeBroker {
	return &fakeBroker{codes: codes, secure: true, subs: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Connect(context.Context) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	code := mqtt.ReturnAccepted
	if len(b.codes) > 0 {
		code = b.codes[0]
		b.codes = b.codes[1:]
	}
	if code != mqtt.ReturnAccepted {
		return code, fmt.Errorf("%w: return code %d", mqtt.ErrConnectionFailed, code)
	}
	b.connected = true
	return code, nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) SetConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
}

func (b *fakeBroker) Secure() bool { return b.secure }

func (b *fakeBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pings++
	return b.pingErr
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subErr != nil {
		return b.subErr
	}
	b.subs[topic] = handler
	return nil
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	buf := append([]byte(nil), payload...)
	b.published = append(b.published, published{topic: topic, payload: buf})
	hook := b.onPublish
	b.mu.Unlock()
	if hook != nil {
		hook(topic, buf)
	}
	return nil
}

// Deliver simulates an inbound message on topic.
func (b *fakeBroker) Deliver(topic string, payload []byte) error {
	b.mu.Lock()
	h := b.subs[topic]
	b.mu.Unlock()
	if h == nil {
		return fmt.Errorf("no subscription for %s", topic)
	}
	return h(topic, payload)
}

func (b *fakeBroker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

func (b *fakeBroker) Published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, p := range b.published {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

// recordingLogger counts log calls by level.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// recordingNotifier collects broadcasts.
type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]any
}

func (n *recordingNotifier) Broadcast(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]any)
	}
	n.events[channel] = append(n.events[channel], payload)
}

func (n *recordingNotifier) Count(channel string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events[channel])
}

// recordingTelemetry collects pin events.
type recordingTelemetry struct {
	mu       sync.Mutex
	pins     []PinEventRecord
	statuses []string
}

func (r *recordingTelemetry) WritePinEvent(pinName, direction string, value int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pins = append(r.pins, PinEventRecord{Pin: pinName, Value: value, Direction: direction, At: at})
}

func (r *recordingTelemetry) WriteStatus(_, code string, _ bool, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, code)
}
