package gpio

import (
	"fmt"

	"github.com/nerrad567/snapper/internal/infrastructure/config"
	"github.com/nerrad567/snapper/internal/pin"
)

// Backend is a pin.Hardware that owns resources.
type Backend interface {
	pin.Hardware

	// Lines reports how many lines the backend exposes.
	Lines() int

	// Close releases every requested line.
	Close() error
}

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.PinsConfig) (Backend, error) {
	switch cfg.Backend {
	case config.PinBackendGPIOCDev:
		return NewChip(cfg.Chip)
	case config.PinBackendSim:
		return NewSim(cfg.MaxPins), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func level(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}
