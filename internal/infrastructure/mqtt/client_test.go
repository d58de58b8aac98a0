package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/snapper/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration. Nothing in this file
// connects; see integration_test.go for tests against a live broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "io-wipper-test123456",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "tester",
			Key:      "aio_key",
		},
		QoS:       1,
		KeepAlive: 5,
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.MQTTConfig)
		wantErr error
	}{
		{"valid", func(*config.MQTTConfig) {}, nil},
		{"empty client id", func(c *config.MQTTConfig) { c.Broker.ClientID = "" }, ErrInvalidClientID},
		{"qos too high", func(c *config.MQTTConfig) { c.QoS = 3 }, ErrInvalidQoS},
		{"negative qos", func(c *config.MQTTConfig) { c.QoS = -1 }, ErrInvalidQoS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != cfg.Broker.ClientID {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, cfg.Broker.ClientID)
	}
	if opts.Username != "tester" || opts.Password != "aio_key" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("auto-reconnect must be off")
	}
	if opts.KeepAlive != 5 {
		t.Errorf("KeepAlive = %d, want 5", opts.KeepAlive)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set for plain tcp")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.KeepAlive = 0

	opts := buildClientOptions(cfg)
	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
	}
	if opts.KeepAlive != int64(defaultKeepAlive/time.Second) {
		t.Errorf("KeepAlive = %d, want default", opts.KeepAlive)
	}
}

func TestSecureAndQoS(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Secure() {
		t.Error("Secure() = true for tcp")
	}
	if c.QoS() != 1 {
		t.Errorf("QoS() = %d, want 1", c.QoS())
	}

	cfg.Broker.TLS = true
	c, _ = New(cfg)
	if !c.Secure() {
		t.Error("Secure() = false for ssl")
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedOperations(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"publish empty topic", func() error { return c.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return c.Publish("t", nil, 3, false) }, ErrInvalidQoS},
		{"publish too large", func() error { return c.Publish("t", make([]byte, maxPayloadSize+1), 1, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return c.Publish("t", []byte("x"), 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 1, handler) }, ErrInvalidTopic},
		{"subscribe nil handler", func() error { return c.Subscribe("t", 1, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return c.Subscribe("t", 1, handler) }, ErrNotConnected},
		{"unsubscribe empty", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return c.Unsubscribe("t") }, ErrNotConnected},
		{"ping disconnected", func() error { return c.Ping(context.Background()) }, ErrNotConnected},
		{"health disconnected", func() error { return c.HealthCheck(context.Background()) }, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribe", c.SubscriptionCount())
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true on nil client")
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c, _ := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestWrapHandler_DeliversPayload(t *testing.T) {
	c, _ := New(testConfig())

	var gotTopic string
	var gotPayload []byte
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return nil
	})
	wrapped(nil, fakeMessage{topic: "a/b", payload: []byte{0x0a, 0x00}})

	if gotTopic != "a/b" || len(gotPayload) != 2 {
		t.Errorf("handler got %q %v", gotTopic, gotPayload)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c, _ := New(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "a/b"})

	if len(logger.errs) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errs))
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	c, _ := New(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		return errors.New("decode failed")
	})
	wrapped(nil, fakeMessage{topic: "a/b"})

	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c, _ := New(testConfig())
	c.SetLogger(&recordingLogger{})

	var connects, disconnects int
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(error) { disconnects++ })

	c.handleConnect()
	c.handleDisconnect(errors.New("eof"))

	if connects != 1 || disconnects != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 1", connects, disconnects)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
}

var _ pahomqtt.Message = fakeMessage{}
