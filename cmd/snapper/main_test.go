package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/snapper/internal/infrastructure/config"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
	"github.com/nerrad567/snapper/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SNAPPER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidHardwareID verifies run fails before touching the broker
// when the configured hardware id is malformed.
func TestRun_InvalidHardwareID(t *testing.T) {
	t.Setenv("SNAPPER_CONFIG", writeConfig(t, `
device:
  board_id: linux-generic
  hardware_id: "not-a-mac"
mqtt:
  broker:
    host: 127.0.0.1
    port: 1883
    tls: false
  auth:
    username: tester
    key: secret
pins:
  backend: sim
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with malformed hardware id")
	}
}

// TestRun_ShutdownWhileWaitingForBroker starts the agent against a broker
// that is not there and checks it stops cleanly when the context ends.
func TestRun_ShutdownWhileWaitingForBroker(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapper.db")
	t.Setenv("SNAPPER_CONFIG", writeConfig(t, `
device:
  board_id: linux-generic
  hardware_id: "24:0a:c4:12:34:56"
mqtt:
  broker:
    host: 127.0.0.1
    port: 1
    tls: false
  auth:
    username: tester
    key: secret
  keepalive: 1
pins:
  backend: sim
  max_pins: 8
  restore: true
database:
  enabled: true
  path: "`+dbPath+`"
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SNAPPER_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	t.Setenv("SNAPPER_CONFIG", "/custom/path/config.yaml")
	if path := getConfigPath(); path != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", path)
	}
}

func TestDeviceIdentity_Configured(t *testing.T) {
	cfg := &config.Config{Device: config.DeviceConfig{
		BoardID:    "linux-generic",
		HardwareID: "24:0a:c4:12:34:56",
	}}

	id, err := deviceIdentity(cfg, netif.NewHost(""))
	if err != nil {
		t.Fatalf("deviceIdentity() error = %v", err)
	}
	if id.BoardID != "linux-generic" || len(id.UID) != 6 {
		t.Errorf("identity = %+v", id)
	}
	if id.ClientID != "io-wipper-linux-generic"+id.UID {
		t.Errorf("ClientID = %q", id.ClientID)
	}
}

func TestDeviceIdentity_MissingBoard(t *testing.T) {
	cfg := &config.Config{Device: config.DeviceConfig{HardwareID: "24:0a:c4:12:34:56"}}
	if _, err := deviceIdentity(cfg, netif.NewHost("")); err == nil {
		t.Error("deviceIdentity() should fail without a board id")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want session.Version
	}{
		{"1.2.3", session.Version{Major: 1, Minor: 2, Micro: 3}},
		{"v2.0.11", session.Version{Major: 2, Micro: 11}},
		{"1.4.0-rc.1", session.Version{Major: 1, Minor: 4}},
		{"3.1", session.Version{Major: 3, Minor: 1}},
		{"dev", session.Version{}},
		{"", session.Version{}},
	}
	for _, tt := range tests {
		if got := parseVersion(tt.in); got != tt.want {
			t.Errorf("parseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
