// Package identity derives the stable per-device identity used to name the
// broker session and every device-scoped topic.
//
// The identity is computed once at startup from the board type and a 6-byte
// hardware identifier and never changes for the lifetime of the process.
package identity

import (
	"errors"
	"fmt"
	"net"
)

// ClientIDPrefix is prepended to every broker client id.
const ClientIDPrefix = "io-wipper-"

// UIDLength is the fixed width of a device UID.
const UIDLength = 6

var (
	// ErrEmptyBoardID is returned when the board type is not set.
	ErrEmptyBoardID = errors.New("identity: board id is empty")

	// ErrInvalidHardwareID is returned when a hardware identifier cannot be parsed.
	ErrInvalidHardwareID = errors.New("identity: invalid hardware id")
)

// HardwareID is a 6-byte hardware identifier stored least-significant byte
// first, the order radio modules report their MAC address in.
type HardwareID [6]byte

// FromMAC converts a MAC in network order (most-significant byte first).
func FromMAC(mac net.HardwareAddr) (HardwareID, error) {
	var hw HardwareID
	if len(mac) != len(hw) {
		return hw, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHardwareID, len(hw), len(mac))
	}
	for i := range hw {
		hw[i] = mac[len(mac)-1-i]
	}
	return hw, nil
}

// ParseHardwareID parses "aa:bb:cc:dd:ee:ff" (network order).
func ParseHardwareID(s string) (HardwareID, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return HardwareID{}, fmt.Errorf("%w: %v", ErrInvalidHardwareID, err)
	}
	return FromMAC(mac)
}

// MAC returns the identifier in network order.
func (h HardwareID) MAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, len(h))
	for i := range h {
		mac[i] = h[len(h)-1-i]
	}
	return mac
}

// Identity is the immutable device identity.
type Identity struct {
	BoardID  string
	UID      string
	ClientID string
}

// Derive builds the identity for a board.
func Derive(boardID string, hw HardwareID) (Identity, error) {
	if boardID == "" {
		return Identity{}, ErrEmptyBoardID
	}
	uid := UID(hw)
	return Identity{
		BoardID:  boardID,
		UID:      uid,
		ClientID: ClientIDPrefix + boardID + uid,
	}, nil
}

// UID renders the three most-significant bytes of hw, most-significant first,
// as two decimal digits each. Bytes above 99 keep their low two digits so
// the result is always UIDLength characters.
func UID(hw HardwareID) string {
	return fmt.Sprintf("%02d%02d%02d", hw[5]%100, hw[4]%100, hw[3]%100) //nolint:mnd // two-digit rendering
}
