package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ledmond/ledmond/internal/leds"
	"github.com/ledmond/ledmond/internal/store"
)

// Defaults applied when the configuration leaves them unset.
const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultRateLimitRPS = 200.0
)

// Engine converges applied hardware state onto pending state, one tick at a
// time. Each tick snapshots the pending records (so hardware I/O never
// happens under the store lock), then reconciles every probed LED in index
// order. A failed hardware call simply leaves the applied record stale; the
// difference is retried on the next tick.
type Engine struct {
	ctrl    leds.Controller
	store   *store.Store
	tick    time.Duration
	limiter *rate.Limiter

	// now is injectable for tests of time-dependent oneshot behavior.
	now func() time.Time
}

// New creates an engine. A zero tick or RPS selects the default.
func New(ctrl leds.Controller, st *store.Store, tick time.Duration, rateLimitRPS float64) *Engine {
	if tick == 0 {
		tick = DefaultTickInterval
	}
	if rateLimitRPS == 0 {
		rateLimitRPS = DefaultRateLimitRPS
	}

	return &Engine{
		ctrl:    ctrl,
		store:   st,
		tick:    tick,
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
		now:     time.Now,
	}
}

// Run executes the tick loop until the context is cancelled. The tick in
// flight always finishes before Run returns, so the hardware handle can be
// released safely afterwards.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("tick", e.tick).Int("leds", e.store.Probed()).Msg("Reconcile engine started")

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconcile engine stopping")
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one full reconciliation pass over all probed LEDs.
func (e *Engine) Tick(ctx context.Context) {
	pending, oneshot := e.store.SnapshotPending()

	for i := range pending {
		e.reconcileOne(ctx, i, pending[i], oneshot[i])
	}
}

// reconcileOne issues the minimal set of hardware calls for one LED. Mode
// is settled first: a mode change can power the LED down, which would make
// brightness/color writes meaningless. Each successful call copies exactly
// the fields it set into the applied record, never more.
func (e *Engine) reconcileOne(ctx context.Context, id int, pending leds.LightState, shot store.Oneshot) {
	applied := e.store.Applied(id)

	effective := EffectiveMode(pending, shot, e.now())

	if effective != applied.Mode {
		switch pending.Mode {
		case leds.ModeOff:
			if e.call(ctx, id, "off", func() error {
				return e.ctrl.SetOnOff(ctx, id, false)
			}) {
				applied.Mode = leds.ModeOff
			}
			// An off LED has no brightness or color to reconcile.
			return

		case leds.ModeOn:
			if e.call(ctx, id, "on", func() error {
				return e.ctrl.SetOnOff(ctx, id, true)
			}) {
				applied.Mode = leds.ModeOn
			}

		case leds.ModeBlink:
			if e.call(ctx, id, "blink", func() error {
				return e.ctrl.SetBlink(ctx, id, pending.TOn, pending.TOff)
			}) {
				applied.Mode = leds.ModeBlink
				applied.TOn = pending.TOn
				applied.TOff = pending.TOff
			}

		case leds.ModeBreath:
			if e.call(ctx, id, "breath", func() error {
				return e.ctrl.SetBreath(ctx, id, pending.TOn, pending.TOff)
			}) {
				applied.Mode = leds.ModeBreath
				applied.TOn = pending.TOn
				applied.TOff = pending.TOff
			}
		}
	}

	if pending.Brightness != applied.Brightness {
		if e.call(ctx, id, "brightness", func() error {
			return e.ctrl.SetBrightness(ctx, id, pending.Brightness)
		}) {
			applied.Brightness = pending.Brightness
		}
	}

	if !pending.SameColor(*applied) {
		if e.call(ctx, id, "rgb", func() error {
			return e.ctrl.SetRGB(ctx, id, pending.ColorR, pending.ColorG, pending.ColorB)
		}) {
			applied.ColorR = pending.ColorR
			applied.ColorG = pending.ColorG
			applied.ColorB = pending.ColorB
		}
	}
}

// call paces the bus with the rate limiter and runs one hardware call,
// reporting whether it succeeded. Failures are logged at debug level only:
// pending/applied divergence is itself the retry signal.
func (e *Engine) call(ctx context.Context, id int, op string, fn func() error) bool {
	if err := e.limiter.Wait(ctx); err != nil {
		return false
	}
	if err := fn(); err != nil {
		log.Debug().Int("led", id).Str("op", op).Err(err).Msg("Hardware call failed, will retry next tick")
		return false
	}
	return true
}
