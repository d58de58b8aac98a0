package gpio

import (
	"errors"
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

const consumer = "snapper"

// Chip implements pin.Hardware on a GPIO character device.
//
// A line is requested on first configuration and kept until Deinit, which
// releases it back to the kernel as a high-impedance input.
type Chip struct {
	mu      sync.Mutex
	chip    *gpiod.Chip
	lines   map[int]*gpiod.Line
	outputs map[int]bool
}

// NewChip opens the named chip, e.g. "gpiochip0".
func NewChip(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", name, err)
	}
	return &Chip{
		chip:    c,
		lines:   make(map[int]*gpiod.Line),
		outputs: make(map[int]bool),
	}, nil
}

// Lines returns the number of lines on the chip.
func (c *Chip) Lines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chip == nil {
		return 0
	}
	return c.chip.Lines()
}

// ConfigureOutput requests pin as an output at the initial level.
func (c *Chip) ConfigureOutput(pin, initial int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := gpiod.AsOutput(level(initial))
	if err := c.request(pin, out, out); err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	c.outputs[pin] = true
	return nil
}

// ConfigureInput requests pin as an input.
func (c *Chip) ConfigureInput(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.request(pin, gpiod.AsInput, gpiod.AsInput); err != nil {
		return fmt.Errorf("request input pin %d: %w", pin, err)
	}
	delete(c.outputs, pin)
	return nil
}

// request reconfigures an already held line or requests a new one.
func (c *Chip) request(pin int, req gpiod.LineReqOption, cfg gpiod.LineConfigOption) error {
	if c.chip == nil {
		return ErrClosed
	}
	if line, ok := c.lines[pin]; ok {
		return line.Reconfigure(cfg)
	}
	line, err := c.chip.RequestLine(pin, req)
	if err != nil {
		return err
	}
	c.lines[pin] = line
	return nil
}

// Deinit switches pin back to input and releases it. Pins never requested
// are left alone.
func (c *Chip) Deinit(pin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		return nil
	}
	delete(c.lines, pin)
	delete(c.outputs, pin)

	var errs []error
	if err := line.Reconfigure(gpiod.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
	}
	return errors.Join(errs...)
}

// Write drives an output pin.
func (c *Chip) Write(pin, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLineNotRequested, pin)
	}
	if !c.outputs[pin] {
		return fmt.Errorf("%w: %d", ErrNotOutput, pin)
	}
	if err := line.SetValue(level(value)); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// Read samples a pin.
func (c *Chip) Read(pin int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrLineNotRequested, pin)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("get pin %d value: %w", pin, err)
	}
	return v, nil
}

// Close releases every line and the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for pin, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	c.lines = make(map[int]*gpiod.Line)
	c.outputs = make(map[int]bool)

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}
	return errors.Join(errs...)
}
