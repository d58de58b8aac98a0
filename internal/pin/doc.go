// Package pin tracks configured GPIO pins and applies decoded pin commands to
// the hardware.
//
// It contains:
//   - Registry: a capacity-bounded store of pin configurations keyed by pin id,
//     including the polling interval of input pins.
//   - Dispatcher: applies pin config requests and pin events to the Registry
//     and the Hardware, and turns input readings into outgoing pin events.
//   - Hardware: the port implemented by the GPIO backends.
//   - Repository: optional persistence so configured pins survive a restart.
//
// # Ordering
//
// Deleting an input pin always deactivates its polling entry before the
// hardware line is released, so no poll can touch a deinitialized pin.
//
// # Analog pins
//
// Analog requests are reported and ignored. They never fail a batch.
package pin
