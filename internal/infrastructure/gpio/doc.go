// Package gpio provides the pin.Hardware backends used by the agent.
//
// Chip drives real lines through the Linux GPIO character device
// (/dev/gpiochipN) using go-gpiocdev. Sim keeps pin state in memory and is
// used on hosts without GPIO and in tests.
//
// Usage:
//
//	hw, err := gpio.Open(cfg.Pins)
//	if err != nil {
//	    return err
//	}
//	defer hw.Close()
package gpio
