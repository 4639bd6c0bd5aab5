package control

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ledmond/ledmond/internal/eventbus"
	"github.com/ledmond/ledmond/internal/leds"
	"github.com/ledmond/ledmond/internal/store"
)

// Protocol errors. Any of these terminates the session.
var (
	ErrInvalidLightID = errors.New("invalid light id")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("malformed argument")
)

// Handler executes commands of one client session against the store.
// Commands are processed strictly in arrival order; every store mutation
// happens under the store's exclusive-access contract.
type Handler struct {
	store *store.Store
	bus   *eventbus.Bus // optional, nil disables audit events

	// now is injectable for tests of the shot re-arm window.
	now func() time.Time
}

// NewHandler creates a command handler.
func NewHandler(st *store.Store, bus *eventbus.Bus) *Handler {
	return &Handler{
		store: st,
		bus:   bus,
		now:   time.Now,
	}
}

// Serve reads and executes commands from one connection until the client
// sends exit, closes the connection, or a protocol error occurs. The
// returned error is the protocol error, if any; a peer close between
// commands is a clean end of session.
func (h *Handler) Serve(conn io.ReadWriter) error {
	sc := bufio.NewScanner(conn)
	sc.Split(bufio.ScanWords)

	for {
		tok, err := next(sc)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		id, err := strconv.Atoi(tok)
		if err != nil || id < 0 || id >= leds.MaxLights {
			return h.fail(fmt.Errorf("%w: %q", ErrInvalidLightID, tok))
		}

		cmd, err := next(sc)
		if err != nil {
			return h.fail(fmt.Errorf("missing command for led %d: %w", id, err))
		}

		done, err := h.dispatch(conn, sc, id, cmd)
		if err != nil {
			return h.fail(err)
		}
		if done {
			return nil
		}
	}
}

// dispatch executes a single command. done=true ends the session cleanly.
func (h *Handler) dispatch(conn io.Writer, sc *bufio.Scanner, id int, cmd string) (done bool, err error) {
	switch cmd {
	case "brightness_set":
		level, err := nextUint8(sc)
		if err != nil {
			return false, err
		}
		h.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
			if level == 0 {
				p.Mode = leds.ModeOff
				return
			}
			if p.Mode == leds.ModeOff {
				p.Mode = leds.ModeOn
			}
			p.Brightness = level
		})
		h.publish(id, cmd, strconv.Itoa(int(level)))

	case "color_set":
		r, err := nextUint8(sc)
		if err != nil {
			return false, err
		}
		g, err := nextUint8(sc)
		if err != nil {
			return false, err
		}
		b, err := nextUint8(sc)
		if err != nil {
			return false, err
		}
		// An all-zero triple is a no-op, not "turn off color".
		if r != 0 || g != 0 || b != 0 {
			h.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
				p.ColorR, p.ColorG, p.ColorB = r, g, b
			})
		}
		h.publish(id, cmd, strconv.Itoa(int(r)), strconv.Itoa(int(g)), strconv.Itoa(int(b)))

	case "on":
		h.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
			p.Mode = leds.ModeOn
		})
		h.publish(id, cmd)

	case "off":
		h.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
			p.Mode = leds.ModeOff
		})
		h.publish(id, cmd)

	case "blink":
		sub, err := next(sc)
		if err != nil {
			return false, fmt.Errorf("%w: missing blink type", ErrBadArgument)
		}
		var mode leds.Mode
		switch sub {
		case "blink":
			mode = leds.ModeBlink
		case "breath":
			mode = leds.ModeBreath
		default:
			return false, fmt.Errorf("%w: invalid blink type %q", ErrBadArgument, sub)
		}
		tOn, tOff, err := nextPeriods(sc)
		if err != nil {
			return false, err
		}
		h.store.WithPending(id, func(p *leds.LightState, _ *store.Oneshot) {
			p.Mode = mode
			p.TOn = tOn
			p.TOff = tOff
		})
		h.publish(id, cmd, sub, strconv.Itoa(int(tOn)), strconv.Itoa(int(tOff)))

	case "oneshot_set":
		tOn, tOff, err := nextPeriods(sc)
		if err != nil {
			return false, err
		}
		h.store.WithPending(id, func(p *leds.LightState, o *store.Oneshot) {
			p.TOn = tOn
			p.TOff = tOff
			o.Enabled = true
		})
		h.publish(id, cmd, strconv.Itoa(int(tOn)), strconv.Itoa(int(tOff)))

	case "shot":
		now := h.now()
		h.store.WithPending(id, func(p *leds.LightState, o *store.Oneshot) {
			// Re-arm only once the previous pulse's full cycle has
			// passed; a shot mid-pulse leaves the clock running.
			cycle := int64(p.TOn) + int64(p.TOff)
			if !o.Enabled || now.Sub(o.Start).Milliseconds() > cycle {
				o.Start = now
			}
		})
		h.publish(id, cmd)

	case "status":
		state := h.store.PendingCopy(id)
		available := 0
		if id < h.store.Probed() {
			available = 1
		}
		_, err := fmt.Fprintf(conn, "%d %d %d %d %d %d %d %d\n",
			available, int(state.Mode), state.Brightness,
			state.ColorR, state.ColorG, state.ColorB,
			state.TOn, state.TOff)
		if err != nil {
			return false, fmt.Errorf("failed to write status reply: %w", err)
		}
		h.publish(id, cmd)

	case "exit":
		return true, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	return false, nil
}

// publish emits a command audit event; a nil bus makes it a no-op.
func (h *Handler) publish(id int, cmd string, args ...string) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeCommand,
		Data: map[string]interface{}{
			"led":     id,
			"command": cmd,
			"args":    args,
		},
	})
}

// fail logs the protocol error, emits a session error event, and passes
// the error through to terminate the session.
func (h *Handler) fail(err error) error {
	log.Warn().Err(err).Msg("Protocol error")
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeSessionError,
			Data: map[string]interface{}{
				"command": err.Error(),
			},
		})
	}
	return err
}

// next returns the next whitespace-separated token, io.EOF once the stream
// is drained.
func next(sc *bufio.Scanner) (string, error) {
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// nextUint8 parses the next token as a 0..255 integer.
func nextUint8(sc *bufio.Scanner) (uint8, error) {
	tok, err := next(sc)
	if err != nil {
		return 0, fmt.Errorf("%w: missing value", ErrBadArgument)
	}
	v, err := strconv.ParseUint(tok, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, tok)
	}
	return uint8(v), nil
}

// nextPeriods parses two millisecond periods and clamps them into the
// hardware range.
func nextPeriods(sc *bufio.Scanner) (tOn, tOff uint16, err error) {
	for _, dst := range []*uint16{&tOn, &tOff} {
		tok, err := next(sc)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: missing period", ErrBadArgument)
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrBadArgument, tok)
		}
		*dst = leds.ClampPeriod(v)
	}
	return tOn, tOff, nil
}
