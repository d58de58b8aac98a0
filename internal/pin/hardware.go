package pin

// Hardware is the GPIO port the Dispatcher drives.
//
// Pin ids are board pin numbers. Implementations must be safe for use from
// one goroutine at a time; the Dispatcher serialises its calls.
type Hardware interface {
	// ConfigureOutput makes pin an output driven to initial.
	ConfigureOutput(pin, initial int) error

	// ConfigureInput makes pin an input.
	ConfigureInput(pin int) error

	// Deinit returns pin to its default high-impedance input state.
	Deinit(pin int) error

	// Write drives an output pin. Any non-zero value is high.
	Write(pin, value int) error

	// Read samples an input pin, returning 0 or 1.
	Read(pin int) (int, error)
}
