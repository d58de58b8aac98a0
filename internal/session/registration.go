package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/snapper/internal/identity"
	"github.com/nerrad567/snapper/internal/signal"
	"github.com/nerrad567/snapper/internal/topics"
)

// Version is the firmware version reported during registration.
type Version struct {
	Major, Minor, Micro int32
}

// String returns "major.minor.micro".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Registrar runs the description handshake.
type Registrar struct {
	broker    Broker
	topics    topics.Set
	identity  identity.Identity
	version   Version
	qos       byte
	retries   int
	timeout   time.Duration
	clock     Clock
	logger    Logger
	responses chan signal.DescriptionResponse
}

// NewRegistrar creates a registrar that makes up to retries attempts, each
// waiting timeout for a reply.
func NewRegistrar(broker Broker, set topics.Set, id identity.Identity, version Version, retries int, timeout time.Duration, clock Clock) *Registrar {
	if retries < 1 {
		retries = 1
	}
	return &Registrar{
		broker:    broker,
		topics:    set,
		identity:  id,
		version:   version,
		qos:       1,
		retries:   retries,
		timeout:   timeout,
		clock:     clock,
		logger:    noopLogger{},
		responses: make(chan signal.DescriptionResponse, 1),
	}
}

// SetLogger sets the logger for the registrar.
func (r *Registrar) SetLogger(logger Logger) {
	r.logger = logger
}

// SetQoS sets the QoS of the description publish.
func (r *Registrar) SetQoS(qos byte) {
	r.qos = qos
}

// HandleResponse is the subscription handler for the description status
// topic. Only the newest unread response is kept.
func (r *Registrar) HandleResponse(topic string, payload []byte) error {
	resp, err := signal.UnmarshalDescriptionResponse(payload)
	if err != nil {
		return fmt.Errorf("decoding registration response on %s: %w", topic, err)
	}
	for {
		select {
		case r.responses <- resp:
			return nil
		default:
		}
		select {
		case <-r.responses:
		default:
		}
	}
}

// Register publishes the description and waits for the broker's answer.
//
// A BoardNotFound answer fails immediately with ErrBoardNotFound. When every
// attempt times out the error wraps ErrRegistrationFailed.
func (r *Registrar) Register(ctx context.Context) (signal.DescriptionResponse, error) {
	req := signal.MarshalDescriptionRequest(signal.DescriptionRequest{
		MachineName: r.identity.BoardID,
		UID:         r.identity.UID,
		VerMajor:    r.version.Major,
		VerMinor:    r.version.Minor,
		VerMicro:    r.version.Micro,
	})

	for attempt := 1; attempt <= r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return signal.DescriptionResponse{}, err
		}
		r.drain()
		r.logger.Info("registering board",
			"attempt", attempt, "retries", r.retries, "board", r.identity.BoardID)

		if err := r.broker.Publish(r.topics.Description, req, r.qos, false); err != nil {
			r.logger.Warn("publishing description failed", "attempt", attempt, "error", err)
		}

		resp, ok, err := r.await(ctx)
		if err != nil {
			return signal.DescriptionResponse{}, err
		}
		if !ok {
			r.logger.Warn("no registration response", "attempt", attempt, "timeout", r.timeout)
			continue
		}

		switch resp.Response {
		case signal.ResponseOK:
			r.logger.Info("board registered",
				"gpio_pins", resp.TotalGPIOPins, "analog_pins", resp.TotalAnalogPins)
			return resp, nil
		case signal.ResponseBoardNotFound:
			return resp, fmt.Errorf("%w: %q", ErrBoardNotFound, r.identity.BoardID)
		default:
			r.logger.Warn("unexpected registration response", "attempt", attempt, "code", resp.Response.String())
		}
	}
	return signal.DescriptionResponse{}, fmt.Errorf("%w: no response after %d attempts", ErrRegistrationFailed, r.retries)
}

// await waits one attempt timeout for a response.
func (r *Registrar) await(ctx context.Context) (signal.DescriptionResponse, bool, error) {
	select {
	case resp := <-r.responses:
		return resp, true, nil
	default:
	}

	deadline := r.clock.After(r.timeout)
	select {
	case resp := <-r.responses:
		return resp, true, nil
	case <-deadline:
		return signal.DescriptionResponse{}, false, nil
	case <-ctx.Done():
		return signal.DescriptionResponse{}, false, ctx.Err()
	}
}

func (r *Registrar) drain() {
	select {
	case <-r.responses:
	default:
	}
}
