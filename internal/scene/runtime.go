// Package scene runs an optional Lua script once at startup to seed the
// pending LED state before the first client connects. The script sees a
// "led" module plus a "log" module for diagnostics.
package scene

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/ledmond/ledmond/internal/leds"
	"github.com/ledmond/ledmond/internal/store"
)

// Runtime owns the Lua state for the startup scene. It is used from a
// single goroutine during startup and closed immediately after.
type Runtime struct {
	L     *lua.LState
	store *store.Store
}

// NewRuntime creates the Lua runtime with the led and log modules
// preloaded.
func NewRuntime(st *store.Store) *Runtime {
	r := &Runtime{
		L:     lua.NewState(),
		store: st,
	}

	r.L.PreloadModule("led", r.ledLoader)
	r.L.PreloadModule("log", logLoader)

	return r
}

// RunFile executes the scene script.
func (r *Runtime) RunFile(path string) error {
	log.Info().Str("path", path).Msg("Running startup scene script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute scene script: %w", err)
	}
	return nil
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}

// ledLoader builds the led module table.
func (r *Runtime) ledLoader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "count", L.NewFunction(r.count))
	L.SetField(mod, "on", L.NewFunction(r.on))
	L.SetField(mod, "off", L.NewFunction(r.off))
	L.SetField(mod, "blink", L.NewFunction(r.blink))
	L.SetField(mod, "breath", L.NewFunction(r.breath))
	L.SetField(mod, "brightness", L.NewFunction(r.brightness))
	L.SetField(mod, "color", L.NewFunction(r.color))

	L.Push(mod)
	return 1
}

// checkLed validates the LED index argument at position 1.
func (r *Runtime) checkLed(L *lua.LState) int {
	id := L.CheckInt(1)
	if id < 0 || id >= leds.MaxLights {
		L.ArgError(1, fmt.Sprintf("led id out of range [0,%d)", leds.MaxLights))
	}
	return id
}

func (r *Runtime) count(L *lua.LState) int {
	L.Push(lua.LNumber(r.store.Probed()))
	return 1
}

func (r *Runtime) on(L *lua.LState) int {
	id := r.checkLed(L)
	r.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
		p.Mode = leds.ModeOn
	})
	return 0
}

func (r *Runtime) off(L *lua.LState) int {
	id := r.checkLed(L)
	r.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
		p.Mode = leds.ModeOff
	})
	return 0
}

func (r *Runtime) blink(L *lua.LState) int {
	return r.cycle(L, leds.ModeBlink)
}

func (r *Runtime) breath(L *lua.LState) int {
	return r.cycle(L, leds.ModeBreath)
}

func (r *Runtime) cycle(L *lua.LState, mode leds.Mode) int {
	id := r.checkLed(L)
	tOn := leds.ClampPeriod(L.CheckInt(2))
	tOff := leds.ClampPeriod(L.CheckInt(3))
	r.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
		p.Mode = mode
		p.TOn = tOn
		p.TOff = tOff
	})
	return 0
}

func (r *Runtime) brightness(L *lua.LState) int {
	id := r.checkLed(L)
	level := L.CheckInt(2)
	if level < 0 || level > 255 {
		L.ArgError(2, "brightness out of range [0,255]")
	}
	r.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
		if level == 0 {
			p.Mode = leds.ModeOff
			return
		}
		if p.Mode == leds.ModeOff {
			p.Mode = leds.ModeOn
		}
		p.Brightness = uint8(level)
	})
	return 0
}

func (r *Runtime) color(L *lua.LState) int {
	id := r.checkLed(L)
	cr := checkChannel(L, 2)
	cg := checkChannel(L, 3)
	cb := checkChannel(L, 4)
	r.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
		p.ColorR, p.ColorG, p.ColorB = cr, cg, cb
	})
	return 0
}

func checkChannel(L *lua.LState, pos int) uint8 {
	v := L.CheckInt(pos)
	if v < 0 || v > 255 {
		L.ArgError(pos, "channel out of range [0,255]")
	}
	return uint8(v)
}

// logLoader exposes zerolog to scene scripts.
func logLoader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "info", L.NewFunction(func(L *lua.LState) int {
		log.Info().Str("source", "scene").Msg(L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "warn", L.NewFunction(func(L *lua.LState) int {
		log.Warn().Str("source", "scene").Msg(L.CheckString(1))
		return 0
	}))

	L.Push(mod)
	return 1
}
