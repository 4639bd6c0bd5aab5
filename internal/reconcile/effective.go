// Package reconcile provides the tick loop that converges the hardware LED
// state onto the pending state held in the store.
package reconcile

import (
	"time"

	"github.com/ledmond/ledmond/internal/leds"
	"github.com/ledmond/ledmond/internal/store"
)

// EffectiveMode computes the mode the hardware should show right now.
//
// Without an active oneshot this is just the pending mode. With one, the
// pulse overlays a temporary on/off pattern timed by the pending TOn/TOff:
// on for the first TOn milliseconds after arming, off until the cycle
// (TOn+TOff) completes, then on again and staying there. The engine never
// re-arms a pulse; only the shot command does.
func EffectiveMode(pending leds.LightState, shot store.Oneshot, now time.Time) leds.Mode {
	if !shot.Enabled {
		return pending.Mode
	}

	elapsed := now.Sub(shot.Start).Milliseconds()
	onWindow := int64(pending.TOn)
	cycle := int64(pending.TOn) + int64(pending.TOff)

	switch {
	case elapsed < onWindow:
		return leds.ModeOn
	case elapsed < cycle:
		return leds.ModeOff
	default:
		return leds.ModeOn
	}
}
