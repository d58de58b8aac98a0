// Package netif reports the state of the host network layer and provides
// the hardware address the device identity is derived from.
//
// The host operating system owns link bring-up; this package only observes
// it, so Reconnect is a re-check rather than an association attempt.
package netif

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/nerrad567/snapper/internal/identity"
)

// State is the network-layer state seen by the session.
type State int

const (
	// Disconnected means no usable interface is up.
	Disconnected State = iota

	// ConnectFailed means the configured interface does not exist.
	ConnectFailed

	// Connected means an interface is up with a routable address.
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectFailed:
		return "connect_failed"
	default:
		return "disconnected"
	}
}

// ErrNoHardwareAddress is returned when no interface has a 6-byte MAC.
var ErrNoHardwareAddress = errors.New("netif: no interface with a hardware address")

// Host observes the host's interfaces.
type Host struct {
	name       string
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewHost watches the named interface, or every non-loopback interface when
// name is empty.
func NewHost(name string) *Host {
	return &Host{
		name:       name,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// Status reports whether the network layer is usable.
func (h *Host) Status() State {
	ifaces, err := h.candidates()
	if err != nil {
		return ConnectFailed
	}
	for _, iface := range ifaces {
		if h.usable(iface) {
			return Connected
		}
	}
	return Disconnected
}

// Reconnect re-checks the network. Link management belongs to the host.
func (h *Host) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.Status() == ConnectFailed {
		return fmt.Errorf("netif: interface %q not found", h.name)
	}
	return nil
}

// HardwareID returns the identifier of the watched interface.
func (h *Host) HardwareID() (identity.HardwareID, error) {
	ifaces, err := h.candidates()
	if err != nil {
		return identity.HardwareID{}, err
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 6 { //nolint:mnd // EUI-48
			return identity.FromMAC(iface.HardwareAddr)
		}
	}
	return identity.HardwareID{}, ErrNoHardwareAddress
}

func (h *Host) candidates() ([]net.Interface, error) {
	all, err := h.interfaces()
	if err != nil {
		return nil, fmt.Errorf("netif: listing interfaces: %w", err)
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if h.name != "" && iface.Name != h.name {
			continue
		}
		out = append(out, iface)
	}
	if h.name != "" && len(out) == 0 {
		return nil, fmt.Errorf("netif: interface %q not found", h.name)
	}
	return out, nil
}

func (h *Host) usable(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
		return false
	}
	addrs, err := h.addrs(iface)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipnet.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}
