package gpio

import (
	"fmt"
	"sync"
)

// Direction of a simulated line.
type simDirection int

const (
	simUnused simDirection = iota
	simInput
	simOutput
)

type simLine struct {
	dir   simDirection
	value int
}

// Sim is an in-memory pin.Hardware. Inputs read whatever was last set with
// SetInput.
type Sim struct {
	mu     sync.Mutex
	size   int
	lines  map[int]*simLine
	closed bool
}

// NewSim creates a simulator exposing size lines.
func NewSim(size int) *Sim {
	return &Sim{size: size, lines: make(map[int]*simLine)}
}

// Lines returns the number of simulated lines.
func (s *Sim) Lines() int { return s.size }

func (s *Sim) line(pin int) (*simLine, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if pin < 0 || pin >= s.size {
		return nil, fmt.Errorf("%w: %d", ErrLineNotRequested, pin)
	}
	l, ok := s.lines[pin]
	if !ok {
		l = &simLine{}
		s.lines[pin] = l
	}
	return l, nil
}

// ConfigureOutput makes pin an output at the initial level.
func (s *Sim) ConfigureOutput(pin, initial int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.line(pin)
	if err != nil {
		return err
	}
	l.dir = simOutput
	l.value = level(initial)
	return nil
}

// ConfigureInput makes pin an input. The last value is kept.
func (s *Sim) ConfigureInput(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.line(pin)
	if err != nil {
		return err
	}
	l.dir = simInput
	return nil
}

// Deinit forgets pin.
func (s *Sim) Deinit(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, pin)
	return nil
}

// Write drives an output pin.
func (s *Sim) Write(pin, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[pin]
	if !ok || l.dir == simUnused {
		return fmt.Errorf("%w: %d", ErrLineNotRequested, pin)
	}
	if l.dir != simOutput {
		return fmt.Errorf("%w: %d", ErrNotOutput, pin)
	}
	l.value = level(value)
	return nil
}

// Read returns the current level of pin.
func (s *Sim) Read(pin int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[pin]
	if !ok || l.dir == simUnused {
		return 0, fmt.Errorf("%w: %d", ErrLineNotRequested, pin)
	}
	return l.value, nil
}

// SetInput sets the level an input pin reads.
func (s *Sim) SetInput(pin, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, err := s.line(pin); err == nil {
		l.value = level(value)
	}
}

// Configured reports whether pin is currently requested.
func (s *Sim) Configured(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[pin]
	return ok && l.dir != simUnused
}

// Close releases all simulated lines.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[int]*simLine)
	s.closed = true
	return nil
}
