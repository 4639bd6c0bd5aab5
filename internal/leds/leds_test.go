package leds

import (
	"context"
	"errors"
	"testing"
)

func TestClampPeriod(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected uint16
	}{
		{"below_minimum", 10, 50},
		{"at_minimum", 50, 50},
		{"in_range", 1000, 1000},
		{"at_maximum", 32767, 32767},
		{"above_maximum", 40000, 32767},
		{"negative", -5, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampPeriod(tt.input); got != tt.expected {
				t.Errorf("ClampPeriod(%d) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode     Mode
		expected string
	}{
		{ModeOff, "off"},
		{ModeOn, "on"},
		{ModeBlink, "blink"},
		{ModeBreath, "breath"},
		{Mode(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.expected {
				t.Errorf("Mode.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// probeController reports the first n slots as present.
type probeController struct {
	present int
	failAt  int // slot index returning a bus error, -1 disables
	queried []int
}

func (c *probeController) Status(ctx context.Context, id int) (Status, error) {
	c.queried = append(c.queried, id)
	if c.failAt >= 0 && id == c.failAt {
		return Status{}, errors.New("bus error")
	}
	if id < c.present {
		return Status{Available: true, State: LightState{Mode: ModeOn, Brightness: uint8(id)}}, nil
	}
	return Status{Available: false}, nil
}

func (c *probeController) SetOnOff(context.Context, int, bool) error              { return nil }
func (c *probeController) SetBlink(context.Context, int, uint16, uint16) error    { return nil }
func (c *probeController) SetBreath(context.Context, int, uint16, uint16) error   { return nil }
func (c *probeController) SetBrightness(context.Context, int, uint8) error        { return nil }
func (c *probeController) SetRGB(context.Context, int, uint8, uint8, uint8) error { return nil }
func (c *probeController) Close() error                                           { return nil }

func TestProbeStopsAtFirstUnavailable(t *testing.T) {
	ctrl := &probeController{present: 4, failAt: -1}

	states, err := Probe(context.Background(), ctrl)
	if err != nil {
		t.Fatalf("Probe() = %v", err)
	}

	if len(states) != 4 {
		t.Fatalf("probed %d leds, want 4", len(states))
	}
	for i, st := range states {
		if st.Brightness != uint8(i) {
			t.Errorf("state[%d].Brightness = %d, want %d", i, st.Brightness, i)
		}
	}
	// Probing queries the first unavailable slot and nothing after it.
	if len(ctrl.queried) != 5 {
		t.Errorf("queried %v, want slots 0..4 only", ctrl.queried)
	}
}

func TestProbeNoLights(t *testing.T) {
	ctrl := &probeController{present: 0, failAt: -1}

	states, err := Probe(context.Background(), ctrl)
	if err != nil {
		t.Fatalf("Probe() = %v", err)
	}
	if len(states) != 0 {
		t.Errorf("probed %d leds, want 0", len(states))
	}
}

func TestProbeFullHouse(t *testing.T) {
	ctrl := &probeController{present: MaxLights + 5, failAt: -1}

	states, err := Probe(context.Background(), ctrl)
	if err != nil {
		t.Fatalf("Probe() = %v", err)
	}
	if len(states) != MaxLights {
		t.Errorf("probed %d leds, want MaxLights=%d", len(states), MaxLights)
	}
}

func TestProbePropagatesBusError(t *testing.T) {
	ctrl := &probeController{present: 4, failAt: 2}

	if _, err := Probe(context.Background(), ctrl); err == nil {
		t.Errorf("Probe() = nil, want bus error")
	}
}
