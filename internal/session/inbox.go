package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/snapper/internal/infrastructure/config"
)

// Policy decides what happens when a message arrives while another is pending.
type Policy int

const (
	// PolicyReplace overwrites the pending message with the new one.
	PolicyReplace Policy = iota

	// PolicyDrop keeps the pending message and discards the new one.
	PolicyDrop
)

// ParsePolicy converts a session.inbound_policy value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", config.InboundPolicyReplace:
		return PolicyReplace, nil
	case config.InboundPolicyDrop:
		return PolicyDrop, nil
	default:
		return PolicyReplace, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// String returns the policy name.
func (p Policy) String() string {
	if p == PolicyDrop {
		return config.InboundPolicyDrop
	}
	return config.InboundPolicyReplace
}

// Inbound is one undecoded message.
type Inbound struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// InboxStats counts inbox activity.
type InboxStats struct {
	Received uint64 `json:"received"`
	Replaced uint64 `json:"replaced"`
	Dropped  uint64 `json:"dropped"`
}

// Inbox is a single-slot handoff from transport goroutines to the run loop.
type Inbox struct {
	mu      sync.Mutex
	policy  Policy
	pending *Inbound
	stats   InboxStats
	ready   chan struct{}
}

// NewInbox creates an empty inbox.
func NewInbox(policy Policy) *Inbox {
	return &Inbox{policy: policy, ready: make(chan struct{}, 1)}
}

// Offer stores a copy of payload. It returns false when the message was
// dropped because another one is pending under PolicyDrop.
func (i *Inbox) Offer(topic string, payload []byte, at time.Time) bool {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	i.mu.Lock()
	i.stats.Received++
	if i.pending != nil {
		if i.policy == PolicyDrop {
			i.stats.Dropped++
			i.mu.Unlock()
			return false
		}
		i.stats.Replaced++
	}
	i.pending = &Inbound{Topic: topic, Payload: buf, ReceivedAt: at}
	select {
	case i.ready <- struct{}{}:
	default:
	}
	i.mu.Unlock()
	return true
}

// Take removes and returns the pending message.
func (i *Inbox) Take() (Inbound, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pending == nil {
		return Inbound{}, false
	}
	msg := *i.pending
	i.pending = nil
	// The ready token belongs to the message just taken.
	select {
	case <-i.ready:
	default:
	}
	return msg, true
}

// Wait blocks until a message is pending, timeout elapses on clock or ctx
// is done. It reports whether a message is pending.
func (i *Inbox) Wait(ctx context.Context, clock Clock, timeout time.Duration) bool {
	if i.Pending() {
		return true
	}
	deadline := clock.After(timeout)
	for {
		select {
		case <-i.ready:
			if i.Pending() {
				return true
			}
		case <-deadline:
			return i.Pending()
		case <-ctx.Done():
			return i.Pending()
		}
	}
}

// Pending reports whether a message is waiting.
func (i *Inbox) Pending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pending != nil
}

// Stats returns a copy of the counters.
func (i *Inbox) Stats() InboxStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}
