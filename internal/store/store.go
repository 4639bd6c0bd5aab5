// Package store holds the shared in-memory LED state: what clients want
// (pending), what the hardware last confirmed (applied), and the oneshot
// pulse overlay. It is the only mutable state shared between the control
// protocol and the reconciliation engine.
package store

import (
	"sync"
	"time"

	"github.com/ledmond/ledmond/internal/leds"
)

// Oneshot is the per-LED pulse overlay. When enabled, the engine derives a
// temporary effective mode from the elapsed time since Start and the
// pending TOn/TOff, without touching the configured mode underneath.
type Oneshot struct {
	Enabled bool
	Start   time.Time
}

// Store keeps pending/applied records and oneshot flags for every LED slot.
// Pending records and oneshot fields are guarded by the mutex and shared
// between command handlers and the engine's snapshot. Applied records are
// owned exclusively by the engine (single writer, never read by handlers)
// and need no locking.
//
// The store never calls into the hardware transport.
type Store struct {
	mu      sync.Mutex
	probed  int
	pending [leds.MaxLights]leds.LightState
	oneshot [leds.MaxLights]Oneshot

	applied [leds.MaxLights]leds.LightState
}

// New builds a store from the startup probe result. Both pending and
// applied start as the probed hardware state, so the first ticks are
// no-ops until a client asks for something different.
func New(probed []leds.LightState) *Store {
	s := &Store{probed: len(probed)}
	copy(s.pending[:], probed)
	copy(s.applied[:], probed)
	return s
}

// Probed returns the number of LEDs discovered at startup.
func (s *Store) Probed() int {
	return s.probed
}

// WithPending runs fn with exclusive access to one LED's pending record and
// oneshot fields. All command mutations go through here; fn must not block
// on I/O.
func (s *Store) WithPending(id int, fn func(p *leds.LightState, o *Oneshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.pending[id], &s.oneshot[id])
}

// PendingCopy returns a copy of one LED's pending record, for status
// queries.
func (s *Store) PendingCopy(id int) leds.LightState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// SnapshotPending copies the pending records and oneshot overlays of all
// probed LEDs under the lock and returns the copies. The engine calls this
// once per tick so hardware I/O never happens while the lock is held.
func (s *Store) SnapshotPending() ([]leds.LightState, []Oneshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]leds.LightState, s.probed)
	oneshot := make([]Oneshot, s.probed)
	copy(pending, s.pending[:s.probed])
	copy(oneshot, s.oneshot[:s.probed])
	return pending, oneshot
}

// Applied returns a pointer to one LED's applied record. Only the engine
// may call this: applied records have a single writer and are invisible to
// the protocol handler, so no lock is taken.
func (s *Store) Applied(id int) *leds.LightState {
	return &s.applied[id]
}
