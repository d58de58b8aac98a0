package identity

import (
	"errors"
	"testing"
)

func TestUID_FixedWidth(t *testing.T) {
	tests := []struct {
		name string
		hw   HardwareID
		want string
	}{
		{name: "zeros", hw: HardwareID{0, 0, 0, 0, 0, 0}, want: "000000"},
		{name: "small bytes", hw: HardwareID{9, 9, 9, 1, 2, 3}, want: "030201"},
		{name: "max bytes", hw: HardwareID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, want: "555555"},
		{name: "mixed", hw: HardwareID{0, 0, 0, 42, 100, 7}, want: "070042"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UID(tt.hw)
			if got != tt.want {
				t.Errorf("UID(%v) = %q, want %q", tt.hw, got, tt.want)
			}
			if len(got) != UIDLength {
				t.Errorf("len(UID) = %d, want %d", len(got), UIDLength)
			}
		})
	}
}

func TestUID_IgnoresLowBytes(t *testing.T) {
	// Every value of every byte, both in and out of the high half.
	for b := 0; b < 256; b++ {
		base := HardwareID{0, 0, 0, byte(b), byte(255 - b), byte(b / 2)}
		want := UID(base)
		if len(want) != UIDLength {
			t.Fatalf("UID(%v) has width %d", base, len(want))
		}

		changed := base
		changed[0] = byte(b * 7)
		changed[1] = byte(b + 13)
		changed[2] = byte(^b)
		if got := UID(changed); got != want {
			t.Fatalf("UID changed with low bytes: %q -> %q", want, got)
		}
	}
}

func TestFromMAC_ReversesOrder(t *testing.T) {
	hw, err := ParseHardwareID("01:02:03:04:05:06")
	if err != nil {
		t.Fatalf("ParseHardwareID() error = %v", err)
	}
	if hw != (HardwareID{6, 5, 4, 3, 2, 1}) {
		t.Errorf("hw = %v, want reversed bytes", hw)
	}
	// Most-significant MAC bytes are the UID source, in MAC order.
	if got := UID(hw); got != "010203" {
		t.Errorf("UID = %q, want %q", got, "010203")
	}
	if got := hw.MAC().String(); got != "01:02:03:04:05:06" {
		t.Errorf("MAC() = %q", got)
	}
}

func TestParseHardwareID_Invalid(t *testing.T) {
	for _, s := range []string{"", "zz:zz", "01:02:03:04:05:06:07:08"} {
		if _, err := ParseHardwareID(s); !errors.Is(err, ErrInvalidHardwareID) {
			t.Errorf("ParseHardwareID(%q) error = %v, want ErrInvalidHardwareID", s, err)
		}
	}
}

func TestDerive(t *testing.T) {
	id, err := Derive("feather-esp32", HardwareID{0, 0, 0, 3, 2, 1})
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if id.UID != "010203" {
		t.Errorf("UID = %q, want %q", id.UID, "010203")
	}
	if id.ClientID != "io-wipper-feather-esp32010203" {
		t.Errorf("ClientID = %q", id.ClientID)
	}

	if _, err := Derive("", HardwareID{}); !errors.Is(err, ErrEmptyBoardID) {
		t.Errorf("Derive(\"\") error = %v, want ErrEmptyBoardID", err)
	}
}
