// Package leds defines the LED state model and the hardware controller
// contract for the NAS indicator LED controller.
package leds

// MaxLights is the number of LED slots the controller addresses. The
// actual number of present LEDs is discovered by probing at startup.
const MaxLights = 10

// Timing bounds for blink/breath/oneshot periods, in milliseconds.
const (
	MinPeriodMs = 50
	MaxPeriodMs = 0x7fff
)

// Mode is the operating mode of a single LED. The integer values are the
// wire codes reported by the status command.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeOn
	ModeBlink
	ModeBreath
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeBlink:
		return "blink"
	case ModeBreath:
		return "breath"
	default:
		return "unknown"
	}
}

// LightState holds the full visual state of one LED. It is a pure value
// type: copy by assignment, compare field-wise.
type LightState struct {
	Mode       Mode
	Brightness uint8
	ColorR     uint8
	ColorG     uint8
	ColorB     uint8
	TOn        uint16 // milliseconds, meaningful for blink/breath and oneshot
	TOff       uint16 // milliseconds
}

// SameColor reports whether both states have identical RGB channels.
func (s LightState) SameColor(other LightState) bool {
	return s.ColorR == other.ColorR && s.ColorG == other.ColorG && s.ColorB == other.ColorB
}

// ClampPeriod clamps a millisecond period into [MinPeriodMs, MaxPeriodMs].
func ClampPeriod(ms int) uint16 {
	if ms < MinPeriodMs {
		return MinPeriodMs
	}
	if ms > MaxPeriodMs {
		return MaxPeriodMs
	}
	return uint16(ms)
}
