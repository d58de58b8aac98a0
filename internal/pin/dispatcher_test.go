package pin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/snapper/internal/signal"
)

// fakeHardware records every call in order. When registry is set, Deinit
// also records whether the pin still had an active polling entry.
type fakeHardware struct {
	calls    []string
	values   map[int]int
	registry *Registry
	failOn   map[string]error
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{values: make(map[int]int), failOn: make(map[string]error)}
}

func (h *fakeHardware) record(call string) error {
	h.calls = append(h.calls, call)
	return h.failOn[call]
}

func (h *fakeHardware) ConfigureOutput(pin, initial int) error {
	h.values[pin] = initial
	return h.record(fmt.Sprintf("output %d=%d", pin, initial))
}

func (h *fakeHardware) ConfigureInput(pin int) error {
	return h.record(fmt.Sprintf("input %d", pin))
}

func (h *fakeHardware) Deinit(pin int) error {
	if h.registry != nil {
		if c, ok := h.registry.Get(pin); ok && c.Active() {
			h.calls = append(h.calls, fmt.Sprintf("timer still active %d", pin))
		}
	}
	return h.record(fmt.Sprintf("deinit %d", pin))
}

func (h *fakeHardware) Write(pin, value int) error {
	h.values[pin] = value
	return h.record(fmt.Sprintf("write %d=%d", pin, value))
}

func (h *fakeHardware) Read(pin int) (int, error) {
	return h.values[pin], h.record(fmt.Sprintf("read %d", pin))
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeHardware, *fakeClock) {
	t.Helper()
	reg := NewRegistry(32)
	hw := newFakeHardware()
	hw.registry = reg
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := NewDispatcher(hw, reg)
	d.SetClock(clk.Now)
	return d, hw, clk
}

func configReq(rt signal.RequestType, name string, dir signal.Direction, period float32) signal.PinConfigRequest {
	return signal.PinConfigRequest{
		RequestType: rt,
		PinName:     name,
		Mode:        signal.ModeDigital,
		Direction:   dir,
		Period:      period,
	}
}

func TestApplyPinConfig_CreateOutputDrivesLow(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)

	if err := d.ApplyPinConfig(context.Background(), configReq(signal.RequestCreate, "D13", signal.DirectionOutput, 0)); err != nil {
		t.Fatalf("ApplyPinConfig() error = %v", err)
	}

	if len(hw.calls) != 1 || hw.calls[0] != "output 13=0" {
		t.Errorf("hardware calls = %v, want [output 13=0]", hw.calls)
	}
	c, ok := d.Registry().Get(13)
	if !ok {
		t.Fatal("pin 13 not registered")
	}
	if c.Direction != signal.DirectionOutput || c.Active() {
		t.Errorf("pin 13 = %+v, want inactive output", c)
	}
}

func TestApplyPinConfig_CreateInputRegistersTimer(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)

	if err := d.ApplyPinConfig(context.Background(), configReq(signal.RequestCreate, "D5", signal.DirectionInput, 2.5)); err != nil {
		t.Fatalf("ApplyPinConfig() error = %v", err)
	}

	if len(hw.calls) != 1 || hw.calls[0] != "input 5" {
		t.Errorf("hardware calls = %v", hw.calls)
	}
	c, _ := d.Registry().Get(5)
	if !c.Active() || c.Interval != 2500*time.Millisecond {
		t.Errorf("pin 5 = %+v, want active with 2.5s interval", c)
	}
}

func TestApplyPinConfig_DeleteStopsTimerBeforeDeinit(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D5", signal.DirectionInput, 1.0)); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestDelete, "D5", signal.DirectionInput, 1.0)); err != nil {
		t.Fatalf("delete error = %v", err)
	}

	want := []string{"input 5", "deinit 5"}
	if len(hw.calls) != len(want) {
		t.Fatalf("hardware calls = %v, want %v", hw.calls, want)
	}
	for i := range want {
		if hw.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, hw.calls[i], want[i])
		}
	}
	if _, ok := d.Registry().Get(5); ok {
		t.Error("pin 5 should be removed from the registry")
	}
	if due := d.Registry().Due(time.Now().Add(time.Hour)); len(due) != 0 {
		t.Errorf("Due() = %v, want none after delete", due)
	}
}

func TestApplyPinConfig_DeleteUnknownPinDeinits(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)

	if err := d.ApplyPinConfig(context.Background(), configReq(signal.RequestDelete, "D7", signal.DirectionOutput, 0)); err != nil {
		t.Fatalf("ApplyPinConfig() error = %v", err)
	}
	if len(hw.calls) != 1 || hw.calls[0] != "deinit 7" {
		t.Errorf("hardware calls = %v", hw.calls)
	}
}

func TestApplyPinConfig_UpdateSwitchesDirection(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D4", signal.DirectionInput, 1)); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestUpdate, "D4", signal.DirectionOutput, 0)); err != nil {
		t.Fatalf("update error = %v", err)
	}

	c, _ := d.Registry().Get(4)
	if c.Direction != signal.DirectionOutput || c.Active() {
		t.Errorf("pin 4 = %+v, want inactive output", c)
	}
	if hw.calls[len(hw.calls)-1] != "output 4=0" {
		t.Errorf("last call = %q", hw.calls[len(hw.calls)-1])
	}
}

func TestApplyPinConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     signal.PinConfigRequest
		wantErr error
	}{
		{
			name:    "unparsable pin",
			req:     configReq(signal.RequestCreate, "Q5", signal.DirectionOutput, 0),
			wantErr: signal.ErrInvalidPinName,
		},
		{
			name:    "unspecified request type",
			req:     configReq(signal.RequestUnspecified, "D5", signal.DirectionOutput, 0),
			wantErr: ErrUnsupportedRequest,
		},
		{
			name:    "pin out of range",
			req:     configReq(signal.RequestCreate, "D99", signal.DirectionOutput, 0),
			wantErr: ErrPinOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hw, _ := newTestDispatcher(t)
			err := d.ApplyPinConfig(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyPinConfig() error = %v, want %v", err, tt.wantErr)
			}
			if len(hw.calls) != 0 {
				t.Errorf("hardware touched on error: %v", hw.calls)
			}
		})
	}
}

func TestApplyPinConfig_IgnoredRequests(t *testing.T) {
	tests := []struct {
		name string
		req  signal.PinConfigRequest
	}{
		{
			name: "analog pin",
			req:  signal.PinConfigRequest{RequestType: signal.RequestCreate, PinName: "A0", Mode: signal.ModeAnalog, Direction: signal.DirectionInput},
		},
		{
			name: "analog delete",
			req:  signal.PinConfigRequest{RequestType: signal.RequestDelete, PinName: "A0", Mode: signal.ModeAnalog},
		},
		{
			name: "digital pin in analog mode",
			req:  signal.PinConfigRequest{RequestType: signal.RequestCreate, PinName: "D3", Mode: signal.ModeAnalog, Direction: signal.DirectionInput},
		},
		{
			name: "unspecified mode",
			req:  signal.PinConfigRequest{RequestType: signal.RequestCreate, PinName: "D5", Direction: signal.DirectionOutput},
		},
		{
			name: "unspecified direction",
			req:  configReq(signal.RequestCreate, "D6", signal.DirectionUnspecified, 0),
		},
		{
			name: "update without direction",
			req:  configReq(signal.RequestUpdate, "D6", signal.DirectionUnspecified, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hw, _ := newTestDispatcher(t)
			if err := d.ApplyPinConfig(context.Background(), tt.req); err != nil {
				t.Errorf("ApplyPinConfig() error = %v, want nil", err)
			}
			if len(hw.calls) != 0 || d.Registry().Len() != 0 {
				t.Errorf("ignored request had effects: calls=%v pins=%d", hw.calls, d.Registry().Len())
			}
		})
	}
}

func TestApplyPinConfig_DeleteIgnoresMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      signal.Mode
		direction signal.Direction
	}{
		{"mode omitted", signal.ModeUnspecified, signal.DirectionUnspecified},
		{"analog mode", signal.ModeAnalog, signal.DirectionInput},
		{"digital mode", signal.ModeDigital, signal.DirectionOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hw, _ := newTestDispatcher(t)
			ctx := context.Background()

			if err := d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D5", signal.DirectionInput, 1.0)); err != nil {
				t.Fatalf("create error = %v", err)
			}
			del := signal.PinConfigRequest{RequestType: signal.RequestDelete, PinName: "D5", Mode: tt.mode, Direction: tt.direction}
			if err := d.ApplyPinConfig(ctx, del); err != nil {
				t.Fatalf("delete error = %v", err)
			}

			want := []string{"input 5", "deinit 5"}
			if len(hw.calls) != len(want) || hw.calls[0] != want[0] || hw.calls[1] != want[1] {
				t.Errorf("hardware calls = %v, want %v", hw.calls, want)
			}
			if _, ok := d.Registry().Get(5); ok {
				t.Error("pin 5 should be removed from the registry")
			}
		})
	}
}

func TestApplyPinEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     signal.PinEvent
		wantCalls []string
		wantErr   bool
	}{
		{name: "digital high", event: signal.PinEvent{PinName: "D2", PinValue: "1"}, wantCalls: []string{"write 2=1"}},
		{name: "digital low", event: signal.PinEvent{PinName: "D2", PinValue: "0"}, wantCalls: []string{"write 2=0"}},
		{name: "analog ignored", event: signal.PinEvent{PinName: "A1", PinValue: "512"}},
		{name: "unknown class", event: signal.PinEvent{PinName: "X1", PinValue: "1"}, wantErr: true},
		{name: "non-numeric value", event: signal.PinEvent{PinName: "D2", PinValue: "on"}, wantErr: true},
		{name: "out of range", event: signal.PinEvent{PinName: "D64", PinValue: "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, hw, _ := newTestDispatcher(t)
			err := d.ApplyPinEvent(context.Background(), tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyPinEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(hw.calls) != len(tt.wantCalls) {
				t.Fatalf("hardware calls = %v, want %v", hw.calls, tt.wantCalls)
			}
			for i := range tt.wantCalls {
				if hw.calls[i] != tt.wantCalls[i] {
					t.Errorf("call %d = %q, want %q", i, hw.calls[i], tt.wantCalls[i])
				}
			}
		})
	}
}

func TestBuildPinEvent(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	msg := d.BuildPinEvent(signal.ModeDigital, 5, 1)

	if msg.Variant() != signal.VariantPinEvents || len(msg.PinEvents) != 1 {
		t.Fatalf("BuildPinEvent() = %+v", msg)
	}
	ev := msg.PinEvents[0]
	if ev.PinName != "D5" || ev.PinValue != "1" || ev.Mode != signal.ModeDigital {
		t.Errorf("event = %+v", ev)
	}
}

func TestPollInputs(t *testing.T) {
	d, hw, clk := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D5", signal.DirectionInput, 1)); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D6", signal.DirectionInput, 3)); err != nil {
		t.Fatalf("create error = %v", err)
	}
	hw.values[5] = 1

	if got := d.PollInputs(); len(got) != 0 {
		t.Fatalf("PollInputs() before any interval = %v", got)
	}

	clk.Advance(time.Second)
	got := d.PollInputs()
	if len(got) != 1 || got[0].Pin != 5 || got[0].Value != 1 {
		t.Fatalf("PollInputs() after 1s = %+v, want pin 5 = 1", got)
	}

	clk.Advance(2 * time.Second)
	got = d.PollInputs()
	if len(got) != 2 || got[0].Pin != 5 || got[1].Pin != 6 {
		t.Errorf("PollInputs() after 3s = %+v, want pins 5 and 6", got)
	}
}

func TestPollInputs_SkipsFailedReads(t *testing.T) {
	d, hw, clk := newTestDispatcher(t)
	if err := d.ApplyPinConfig(context.Background(), configReq(signal.RequestCreate, "D8", signal.DirectionInput, 1)); err != nil {
		t.Fatalf("create error = %v", err)
	}
	hw.failOn["read 8"] = errors.New("line busy")

	clk.Advance(time.Second)
	if got := d.PollInputs(); len(got) != 0 {
		t.Errorf("PollInputs() = %v, want none", got)
	}
}

func TestPeriodToInterval(t *testing.T) {
	tests := []struct {
		period float32
		want   time.Duration
	}{
		{1, time.Second},
		{0.25, 250 * time.Millisecond},
		{0, IntervalInactive},
		{-1, IntervalInactive},
		{0.0001, IntervalInactive},
	}
	for _, tt := range tests {
		if got := PeriodToInterval(tt.period); got != tt.want {
			t.Errorf("PeriodToInterval(%v) = %v, want %v", tt.period, got, tt.want)
		}
	}
}

func TestRelease(t *testing.T) {
	d, hw, _ := newTestDispatcher(t)
	ctx := context.Background()
	_ = d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D1", signal.DirectionInput, 1))
	_ = d.ApplyPinConfig(ctx, configReq(signal.RequestCreate, "D2", signal.DirectionOutput, 0))

	d.Release()

	if d.Registry().Len() != 0 {
		t.Errorf("Len() = %d after Release", d.Registry().Len())
	}
	for _, c := range hw.calls {
		if c == "timer still active 1" {
			t.Error("input timer was active when its line was released")
		}
	}
}
