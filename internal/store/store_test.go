package store

import (
	"sync"
	"testing"

	"github.com/ledmond/ledmond/internal/leds"
)

func TestNewSeedsPendingAndApplied(t *testing.T) {
	probed := []leds.LightState{
		{Mode: leds.ModeOn, Brightness: 128},
		{Mode: leds.ModeBlink, TOn: 100, TOff: 200},
	}
	s := New(probed)

	if s.Probed() != 2 {
		t.Fatalf("Probed() = %d, want 2", s.Probed())
	}

	for i, want := range probed {
		if got := s.PendingCopy(i); got != want {
			t.Errorf("pending[%d] = %+v, want %+v", i, got, want)
		}
		if got := *s.Applied(i); got != want {
			t.Errorf("applied[%d] = %+v, want %+v", i, got, want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New([]leds.LightState{{Mode: leds.ModeOn}})

	pending, oneshot := s.SnapshotPending()
	if len(pending) != 1 || len(oneshot) != 1 {
		t.Fatalf("snapshot sizes = %d/%d, want 1/1", len(pending), len(oneshot))
	}

	// Mutating the store after the snapshot must not leak into the copy.
	s.WithPending(0, func(p *leds.LightState, o *Oneshot) {
		p.Mode = leds.ModeBreath
		o.Enabled = true
	})

	if pending[0].Mode != leds.ModeOn {
		t.Errorf("snapshot mutated by later write: %+v", pending[0])
	}
	if oneshot[0].Enabled {
		t.Errorf("oneshot snapshot mutated by later write")
	}
}

func TestSnapshotCoversOnlyProbed(t *testing.T) {
	s := New([]leds.LightState{{}, {}})

	// Commands may address unprobed slots; the engine's snapshot must not
	// include them.
	s.WithPending(7, func(p *leds.LightState, _ *Oneshot) {
		p.Mode = leds.ModeOn
	})

	pending, _ := s.SnapshotPending()
	if len(pending) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(pending))
	}
	if got := s.PendingCopy(7); got.Mode != leds.ModeOn {
		t.Errorf("unprobed slot write lost: %+v", got)
	}
}

func TestWithPendingSerializesWriters(t *testing.T) {
	s := New([]leds.LightState{{}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.WithPending(0, func(p *leds.LightState, _ *Oneshot) {
				p.Brightness++
			})
		}()
	}
	// Snapshots interleave with the writers without tearing.
	for i := 0; i < 10; i++ {
		s.SnapshotPending()
	}
	wg.Wait()

	if got := s.PendingCopy(0).Brightness; got != 50 {
		t.Errorf("brightness = %d after 50 increments, want 50", got)
	}
}
