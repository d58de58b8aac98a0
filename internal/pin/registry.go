package pin

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/snapper/internal/signal"
)

// IntervalInactive marks a pin that is not polled.
const IntervalInactive time.Duration = -1

// Config is the tracked state of one configured pin.
type Config struct {
	ID        int
	Mode      signal.Mode
	Direction signal.Direction
	// Interval is the polling interval of an input pin, or IntervalInactive.
	Interval time.Duration
	// LastPoll is when the pin was last sampled.
	LastPoll time.Time
}

// Active reports whether the pin has a live polling entry.
func (c Config) Active() bool {
	return c.Direction == signal.DirectionInput && c.Interval > 0
}

// Name returns the wire name of the pin.
func (c Config) Name() string {
	return signal.DigitalPin(c.ID).String()
}

// Registry holds pin configurations keyed by pin id.
//
// Pin ids must lie in [0, limit). The limit starts at the configured maximum
// and is narrowed to the board's pin count once registration reports it.
//
// All public methods are thread-safe.
type Registry struct {
	mu    sync.RWMutex
	limit int
	pins  map[int]*Config
}

// NewRegistry creates a registry accepting pin ids below limit.
func NewRegistry(limit int) *Registry {
	return &Registry{
		limit: limit,
		pins:  make(map[int]*Config),
	}
}

// Limit returns the current pin id bound.
func (r *Registry) Limit() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limit
}

// SetLimit changes the pin id bound. Pins at or above the new bound are
// kept but no new ones can be added there.
func (r *Registry) SetLimit(limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
}

// CheckID returns ErrPinOutOfRange when id is outside the bound.
func (r *Registry) CheckID(id int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkID(id)
}

func (r *Registry) checkID(id int) error {
	if id < 0 || id >= r.limit {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrPinOutOfRange, id, r.limit)
	}
	return nil
}

// Admit reports whether Put would accept id.
func (r *Registry) Admit(id int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkID(id); err != nil {
		return err
	}
	if _, exists := r.pins[id]; !exists && len(r.pins) >= r.limit {
		return ErrRegistryFull
	}
	return nil
}

// Put creates or replaces the entry for cfg.ID.
func (r *Registry) Put(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkID(cfg.ID); err != nil {
		return err
	}
	if _, exists := r.pins[cfg.ID]; !exists && len(r.pins) >= r.limit {
		return ErrRegistryFull
	}
	c := cfg
	r.pins[cfg.ID] = &c
	return nil
}

// Get returns a copy of the entry for id.
func (r *Registry) Get(id int) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.pins[id]
	if !ok {
		return Config{}, false
	}
	return *c, true
}

// Deactivate resets the polling interval of id to IntervalInactive.
// It reports whether an active entry was deactivated.
func (r *Registry) Deactivate(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.pins[id]
	if !ok || c.Interval == IntervalInactive {
		return false
	}
	c.Interval = IntervalInactive
	return true
}

// Remove deletes the entry for id.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pins, id)
}

// Len returns the number of configured pins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pins)
}

// List returns all entries ordered by pin id.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Config, 0, len(r.pins))
	for _, c := range r.pins {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Due returns, in pin order, the active input pins whose interval has
// elapsed at now, and marks them as polled.
func (r *Registry) Due(now time.Time) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []int
	for id, c := range r.pins {
		if !c.Active() {
			continue
		}
		if c.LastPoll.IsZero() || now.Sub(c.LastPoll) >= c.Interval {
			c.LastPoll = now
			due = append(due, id)
		}
	}
	sort.Ints(due)
	return due
}
