package leds

import "context"

// Status is the result of querying one LED slot on the controller.
type Status struct {
	Available bool
	State     LightState
}

// Controller is the hardware transport for the LED controller. Every call
// is a bounded-time bus transaction with no partial-success semantics: a
// nil error means the whole operation took effect.
type Controller interface {
	// Status queries one LED slot. Unavailable slots report Available=false
	// with a nil error.
	Status(ctx context.Context, id int) (Status, error)

	SetOnOff(ctx context.Context, id int, on bool) error
	SetBlink(ctx context.Context, id int, tOn, tOff uint16) error
	SetBreath(ctx context.Context, id int, tOn, tOff uint16) error
	SetBrightness(ctx context.Context, id int, level uint8) error
	SetRGB(ctx context.Context, id int, r, g, b uint8) error

	Close() error
}

// Probe enumerates LED slots 0..MaxLights-1 and returns the states of the
// present LEDs. Probing stops at the first unavailable slot; everything
// after it is never touched.
func Probe(ctx context.Context, ctrl Controller) ([]LightState, error) {
	states := make([]LightState, 0, MaxLights)
	for i := 0; i < MaxLights; i++ {
		st, err := ctrl.Status(ctx, i)
		if err != nil {
			return nil, err
		}
		if !st.Available {
			break
		}
		states = append(states, st.State)
	}
	return states, nil
}
