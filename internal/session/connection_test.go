package session

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/snapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
)

const keepalive = 5 * time.Second

func newTestManager(netState netif.State, codes ...byte) (*ConnectionManager, *fakeNetwork, *fakeBroker, *fakeClock) {
	net := &fakeNetwork{state: netState}
	broker := newFakeBroker(codes...)
	clock := newFakeClock()
	return NewConnectionManager(net, broker, clock, keepalive), net, broker, clock
}

func TestStatus_NetworkCheckedFirst(t *testing.T) {
	ctx := context.Background()

	for _, netState := range []netif.State{netif.Disconnected, netif.ConnectFailed} {
		// Any mix of broker states underneath a down network.
		for _, brokerUp := range []bool{true, false} {
			m, _, broker, clock := newTestManager(netState)
			broker.SetConnected(brokerUp)

			for i := 0; i < 5; i++ {
				st := m.Status(ctx)
				if st.Online() {
					t.Fatalf("net=%v broker=%v: Status() = %v while network down", netState, brokerUp, st.Code())
				}
				clock.Advance(keepalive * 2)
			}
			if broker.Connects() != 0 {
				t.Errorf("net=%v: %d connect attempts with network down", netState, broker.Connects())
			}
		}
	}
}

func TestStatus_NetworkStates(t *testing.T) {
	tests := []struct {
		net  netif.State
		want Status
	}{
		{netif.Disconnected, StatusNetDisconnected},
		{netif.ConnectFailed, StatusNetConnectFailed},
		{netif.Connected, StatusConnected},
	}
	for _, tt := range tests {
		t.Run(tt.net.String(), func(t *testing.T) {
			m, _, _, _ := newTestManager(tt.net)
			if got := m.Status(context.Background()); got != tt.want {
				t.Errorf("Status() = %v, want %v", got.Code(), tt.want.Code())
			}
		})
	}
}

func TestStatus_NetworkDropAfterConnect(t *testing.T) {
	ctx := context.Background()
	m, net, _, _ := newTestManager(netif.Connected)

	if st := m.Status(ctx); st != StatusConnected {
		t.Fatalf("Status() = %v, want connected", st.Code())
	}
	net.Set(netif.Disconnected)
	if st := m.Status(ctx); st != StatusNetDisconnected {
		t.Errorf("Status() = %v after network loss, want net_disconnected", st.Code())
	}
	if m.Current() != StatusNetDisconnected {
		t.Errorf("Current() = %v", m.Current().Code())
	}
}

func TestStatus_ReturnCodes(t *testing.T) {
	tests := []struct {
		name      string
		code      byte
		want      Status
		wantSleep bool
	}{
		{"accepted", mqtt.ReturnAccepted, StatusConnected, false},
		{"bad protocol", mqtt.ReturnBadProtocolVersion, StatusConnectFailed, false},
		{"id rejected", mqtt.ReturnIDRejected, StatusConnectFailed, false},
		{"server unavailable", mqtt.ReturnServerUnavailable, StatusDisconnected, true},
		{"bad credentials", mqtt.ReturnBadCredentials, StatusConnectFailed, false},
		{"not authorized", mqtt.ReturnNotAuthorized, StatusConnectFailed, false},
		{"throttled", mqtt.ReturnThrottled, StatusDisconnected, true},
		{"banned", mqtt.ReturnBanned, StatusDisconnected, true},
		{"network error", networkError, StatusDisconnected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, clock := newTestManager(netif.Connected, tt.code)

			got := m.Status(context.Background())
			if got != tt.want {
				t.Errorf("Status() = %v, want %v", got.Code(), tt.want.Code())
			}
			if slept := len(clock.Sleeps()) > 0; slept != tt.wantSleep {
				t.Errorf("slept = %v, want %v", slept, tt.wantSleep)
			}
			if m.LastReturnCode() != tt.code {
				t.Errorf("LastReturnCode() = %d, want %d", m.LastReturnCode(), tt.code)
			}
		})
	}
}

func TestStatus_PermanentFailureIsSticky(t *testing.T) {
	ctx := context.Background()
	m, _, broker, clock := newTestManager(netif.Connected, mqtt.ReturnBadCredentials)

	if st := m.Status(ctx); !st.Fatal() {
		t.Fatalf("Status() = %v, want fatal", st.Code())
	}
	clock.Advance(time.Hour)
	if st := m.Status(ctx); st != StatusConnectFailed {
		t.Errorf("Status() = %v later, want connect_failed", st.Code())
	}
	if broker.Connects() != 1 {
		t.Errorf("Connects = %d, want 1 (no retry after permanent failure)", broker.Connects())
	}
}

func TestStatus_AttemptsThrottledToKeepalive(t *testing.T) {
	ctx := context.Background()
	m, _, broker, clock := newTestManager(netif.Connected, networkError, networkError)

	first := m.Status(ctx)
	if broker.Connects() != 1 {
		t.Fatalf("Connects = %d after first Status, want 1", broker.Connects())
	}

	clock.Advance(keepalive - time.Millisecond)
	second := m.Status(ctx)
	if broker.Connects() != 1 {
		t.Errorf("Connects = %d, second attempt within keepalive was not suppressed", broker.Connects())
	}
	if second != first {
		t.Errorf("suppressed Status() = %v, want previous %v", second.Code(), first.Code())
	}

	clock.Advance(time.Millisecond)
	m.Status(ctx)
	if broker.Connects() != 2 {
		t.Errorf("Connects = %d after a full keepalive, want 2", broker.Connects())
	}
}

func TestStatus_ThrottledCodeWaitsFullKeepalive(t *testing.T) {
	ctx := context.Background()
	m, _, _, clock := newTestManager(netif.Connected, mqtt.ReturnThrottled)

	start := clock.Now()
	var disconnectedAt time.Time
	m.OnChange(func(_, to Status) {
		if to == StatusDisconnected {
			disconnectedAt = clock.Now()
		}
	})

	if st := m.Status(ctx); st != StatusDisconnected {
		t.Fatalf("Status() = %v, want disconnected", st.Code())
	}
	if disconnectedAt.IsZero() {
		t.Fatal("no transition to disconnected observed")
	}
	if waited := disconnectedAt.Sub(start); waited < keepalive {
		t.Errorf("disconnected reported after %v, want at least %v", waited, keepalive)
	}
	if sleeps := clock.Sleeps(); len(sleeps) != 1 || sleeps[0] != keepalive {
		t.Errorf("sleeps = %v, want [%v]", sleeps, keepalive)
	}
}

func TestStatus_StaleConnectedReportedAsDisconnected(t *testing.T) {
	ctx := context.Background()
	m, _, broker, clock := newTestManager(netif.Connected)

	if st := m.Status(ctx); st != StatusConnected {
		t.Fatalf("Status() = %v, want connected", st.Code())
	}

	broker.SetConnected(false)
	clock.Advance(time.Second)
	if st := m.Status(ctx); st != StatusDisconnected {
		t.Errorf("Status() = %v after drop, want disconnected", st.Code())
	}
	if broker.Connects() != 1 {
		t.Errorf("Connects = %d, want 1", broker.Connects())
	}
}

func TestStatus_Insecure(t *testing.T) {
	m, _, broker, _ := newTestManager(netif.Connected)
	broker.secure = false

	if st := m.Status(context.Background()); st != StatusConnectedInsecure {
		t.Errorf("Status() = %v, want connected_insecure", st.Code())
	}
	if !StatusConnectedInsecure.Online() {
		t.Error("insecure connection must count as online")
	}
}

func TestKeepalive(t *testing.T) {
	ctx := context.Background()
	m, _, broker, clock := newTestManager(netif.Connected)

	if m.Keepalive(ctx) {
		t.Error("Keepalive() pinged a disconnected broker")
	}
	m.Status(ctx)

	clock.Advance(keepalive)
	if m.Keepalive(ctx) {
		t.Error("Keepalive() pinged at exactly one interval")
	}
	clock.Advance(time.Millisecond)
	if !m.Keepalive(ctx) {
		t.Error("Keepalive() did not ping after the interval")
	}
	if m.Keepalive(ctx) {
		t.Error("Keepalive() pinged twice in a row")
	}
	if broker.pings != 1 {
		t.Errorf("pings = %d, want 1", broker.pings)
	}
}

func TestKeepalive_FailedPingReconnects(t *testing.T) {
	ctx := context.Background()
	m, _, broker, clock := newTestManager(netif.Connected)

	if st := m.Status(ctx); st != StatusConnected {
		t.Fatalf("Status() = %v, want connected", st.Code())
	}

	broker.mu.Lock()
	broker.pingErr = mqtt.ErrNotConnected
	broker.mu.Unlock()

	clock.Advance(keepalive + time.Millisecond)
	if !m.Keepalive(ctx) {
		t.Fatal("Keepalive() did not ping after the interval")
	}
	if got := m.Current(); got != StatusDisconnected {
		t.Errorf("Current() = %v after failed ping, want disconnected", got.Code())
	}
	if m.Keepalive(ctx) {
		t.Error("Keepalive() pinged a lost connection")
	}

	broker.mu.Lock()
	broker.pingErr = nil
	broker.mu.Unlock()

	if st := m.Status(ctx); st != StatusConnected {
		t.Errorf("Status() = %v, want connected after reconnect", st.Code())
	}
	if broker.Connects() != 2 {
		t.Errorf("Connects = %d, want 2", broker.Connects())
	}
}

func TestStatus_Text(t *testing.T) {
	tests := []struct {
		status Status
		code   string
		fatal  bool
	}{
		{StatusIdle, "idle", false},
		{StatusNetDisconnected, "net_disconnected", false},
		{StatusNetConnectFailed, "net_connect_failed", false},
		{StatusNetConnected, "net_connected", false},
		{StatusConnecting, "connecting", false},
		{StatusConnectFailed, "connect_failed", true},
		{StatusDisconnected, "disconnected", false},
		{StatusConnected, "connected", false},
		{StatusConnectedInsecure, "connected_insecure", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.status.Code() != tt.code {
				t.Errorf("Code() = %q, want %q", tt.status.Code(), tt.code)
			}
			if tt.status.Fatal() != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", tt.status.Fatal(), tt.fatal)
			}
			if tt.status.String() == "" || tt.status.String() == "Unknown status." {
				t.Errorf("String() = %q", tt.status.String())
			}
		})
	}
	if !BoardFailed.Fatal() || BoardOperational.Fatal() {
		t.Error("only BoardFailed is fatal")
	}
}
