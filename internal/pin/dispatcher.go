package pin

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/snapper/internal/signal"
)

// Logger defines the logging interface used by the Dispatcher.
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

// Reading is one sampled input value.
type Reading struct {
	Pin   int
	Value int
	At    time.Time
}

// Dispatcher applies pin commands to the Registry and the Hardware.
//
// Calls are expected from the session run loop only; the Dispatcher itself
// does not serialise them.
type Dispatcher struct {
	hw       Hardware
	registry *Registry
	repo     Repository
	logger   Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over hw and registry.
func NewDispatcher(hw Hardware, registry *Registry) *Dispatcher {
	return &Dispatcher{
		hw:       hw,
		registry: registry,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetRepository enables persistence of pin configurations.
func (d *Dispatcher) SetRepository(repo Repository) {
	d.repo = repo
}

// SetClock replaces the time source used for polling bookkeeping.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Registry returns the registry the dispatcher maintains.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ApplyPinConfig creates, updates or deletes a pin.
//
// Delete on a digital pin ignores mode and direction. Analog requests, and
// create requests without a digital mode or a direction, are logged and
// ignored. Update re-applies create semantics to the pin.
func (d *Dispatcher) ApplyPinConfig(ctx context.Context, req signal.PinConfigRequest) error {
	ref, err := signal.ParsePinRef(req.PinName)
	if err != nil {
		return err
	}

	if ref.Class == signal.ClassAnalog {
		d.logger.Warn("analog pins are not implemented, request ignored",
			"pin", req.PinName, "request", req.RequestType.String())
		return nil
	}
	if err := d.registry.CheckID(ref.Number); err != nil {
		return err
	}

	switch req.RequestType {
	case signal.RequestDelete:
		if err := d.delete(ref.Number); err != nil {
			return err
		}
		d.forget(ctx, ref.Number)
		return nil
	case signal.RequestCreate, signal.RequestUpdate:
	default:
		return fmt.Errorf("%w: %d for %s", ErrUnsupportedRequest, req.RequestType, req.PinName)
	}

	switch {
	case req.Mode == signal.ModeAnalog:
		d.logger.Warn("analog pins are not implemented, request ignored",
			"pin", req.PinName, "request", req.RequestType.String())
		return nil
	case req.Mode != signal.ModeDigital:
		d.logger.Warn("invalid pin mode, request ignored", "pin", req.PinName, "mode", req.Mode.String())
		return nil
	case req.Direction != signal.DirectionInput && req.Direction != signal.DirectionOutput:
		d.logger.Warn("invalid digital pin direction, request ignored",
			"pin", req.PinName, "direction", req.Direction.String())
		return nil
	}

	if err := d.create(ref.Number, req.Direction, req.Period); err != nil {
		return err
	}
	d.persist(ctx, req, ref.Number)
	return nil
}

func (d *Dispatcher) create(id int, dir signal.Direction, period float32) error {
	if err := d.registry.Admit(id); err != nil {
		return err
	}
	cfg := Config{
		ID:       id,
		Mode:     signal.ModeDigital,
		Interval: IntervalInactive,
		LastPoll: d.now(),
	}

	// Reconfiguring an input pin stops its timer first.
	if prev, ok := d.registry.Get(id); ok && prev.Direction == signal.DirectionInput {
		d.registry.Deactivate(id)
	}

	switch dir {
	case signal.DirectionOutput:
		// Outputs start low so the line never floats.
		if err := d.hw.ConfigureOutput(id, 0); err != nil {
			return fmt.Errorf("configuring output pin %d: %w", id, err)
		}
		cfg.Direction = signal.DirectionOutput
		d.logger.Info("configured digital output pin", "pin", id)
	case signal.DirectionInput:
		if err := d.hw.ConfigureInput(id); err != nil {
			return fmt.Errorf("configuring input pin %d: %w", id, err)
		}
		cfg.Direction = signal.DirectionInput
		cfg.Interval = PeriodToInterval(period)
		d.logger.Info("configured digital input pin", "pin", id, "interval_ms", cfg.Interval.Milliseconds())
	default:
		return fmt.Errorf("%w: %s for pin %d", ErrUnsupportedDirection, dir, id)
	}

	return d.registry.Put(cfg)
}

func (d *Dispatcher) delete(id int) error {
	// The polling entry goes before the hardware line is released.
	if prev, ok := d.registry.Get(id); ok && prev.Direction == signal.DirectionInput {
		if d.registry.Deactivate(id) {
			d.logger.Debug("freed input timer", "pin", id)
		}
	}
	if err := d.hw.Deinit(id); err != nil {
		return fmt.Errorf("deinitializing pin %d: %w", id, err)
	}
	d.registry.Remove(id)
	d.logger.Info("deinitialized pin", "pin", id)
	return nil
}

// PeriodToInterval converts a polling period in seconds to an interval.
// Non-positive periods disable polling.
func PeriodToInterval(period float32) time.Duration {
	if period <= 0 {
		return IntervalInactive
	}
	ms := int64(float64(period) * 1000) //nolint:mnd // seconds to milliseconds
	if ms <= 0 {
		return IntervalInactive
	}
	return time.Duration(ms) * time.Millisecond
}

// ApplyPinEvent writes an inbound value to a digital pin. Analog events are
// logged and ignored.
func (d *Dispatcher) ApplyPinEvent(_ context.Context, ev signal.PinEvent) error {
	ref, err := signal.ParsePinRef(ev.PinName)
	if err != nil {
		return err
	}

	if ref.Class == signal.ClassAnalog {
		d.logger.Warn("analog pin events are not implemented, event ignored", "pin", ev.PinName)
		return nil
	}
	if err := d.registry.CheckID(ref.Number); err != nil {
		return err
	}

	value, err := ev.Value()
	if err != nil {
		return err
	}
	if err := d.hw.Write(ref.Number, value); err != nil {
		return fmt.Errorf("writing pin %d: %w", ref.Number, err)
	}
	d.logger.Debug("digital pin event", "pin", ref.Number, "value", value)
	return nil
}

// BuildPinEvent wraps a reading into a signal message. It does no I/O.
func (d *Dispatcher) BuildPinEvent(mode signal.Mode, pin, value int) signal.Message {
	return signal.NewPinEventMessage(mode, signal.DigitalPin(pin), value)
}

// PollInputs samples every input pin whose interval has elapsed. Pins that
// fail to read are logged and skipped.
func (d *Dispatcher) PollInputs() []Reading {
	now := d.now()
	due := d.registry.Due(now)
	if len(due) == 0 {
		return nil
	}

	readings := make([]Reading, 0, len(due))
	for _, id := range due {
		v, err := d.hw.Read(id)
		if err != nil {
			d.logger.Warn("reading input pin failed", "pin", id, "error", err)
			continue
		}
		readings = append(readings, Reading{Pin: id, Value: v, At: now})
	}
	return readings
}

// Restore re-applies every persisted pin configuration. It returns the
// number of pins restored; individual failures are logged.
func (d *Dispatcher) Restore(ctx context.Context) (int, error) {
	if d.repo == nil {
		return 0, nil
	}
	records, err := d.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading pin configs: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if err := d.registry.CheckID(rec.ID); err != nil {
			d.logger.Warn("skipping persisted pin", "pin", rec.ID, "error", err)
			continue
		}
		if err := d.create(rec.ID, rec.Direction, rec.Period); err != nil {
			d.logger.Warn("restoring pin failed", "pin", rec.ID, "error", err)
			continue
		}
		restored++
	}
	d.logger.Info("restored pin configs", "count", restored)
	return restored, nil
}

// Release deinitializes every configured pin, deactivating timers first.
func (d *Dispatcher) Release() {
	for _, c := range d.registry.List() {
		if err := d.delete(c.ID); err != nil {
			d.logger.Warn("releasing pin failed", "pin", c.ID, "error", err)
		}
	}
}

func (d *Dispatcher) persist(ctx context.Context, req signal.PinConfigRequest, id int) {
	if d.repo == nil {
		return
	}
	rec := Record{ID: id, Mode: signal.ModeDigital, Direction: req.Direction, Period: req.Period}
	if err := d.repo.Save(ctx, rec); err != nil {
		d.logger.Warn("persisting pin config failed", "pin", id, "error", err)
	}
}

func (d *Dispatcher) forget(ctx context.Context, id int) {
	if d.repo == nil {
		return
	}
	if err := d.repo.Delete(ctx, id); err != nil {
		d.logger.Warn("removing persisted pin config failed", "pin", id, "error", err)
	}
}
