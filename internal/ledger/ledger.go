// Package ledger provides an append-only audit history of control channel
// activity: every accepted command and every session error.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ledmond/ledmond/internal/eventbus"
)

// Ledger appends control channel events to SQLite.
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds one event row. led may be -1 for events not tied to an LED.
func (l *Ledger) Append(eventID string, eventType eventbus.EventType, led int, command string, args []string) error {
	now := time.Now().UTC().Unix()

	_, err := l.db.Exec(`
		INSERT INTO command_ledger (event_id, event_type, led, command, args, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, eventID, string(eventType), led, command, strings.Join(args, " "), now)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Cleanup deletes entries older than the retention window.
func (l *Ledger) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	res, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunCleanup periodically prunes old entries until the context is
// cancelled.
func (l *Ledger) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := l.Cleanup(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Ledger cleanup completed")
			}
		}
	}
}

// Subscribe wires the ledger to the event bus so command and session-error
// events are recorded as they happen.
func (l *Ledger) Subscribe(bus *eventbus.Bus) {
	record := func(ev eventbus.Event) {
		led := -1
		if v, ok := ev.Data["led"].(int); ok {
			led = v
		}
		command, _ := ev.Data["command"].(string)
		args, _ := ev.Data["args"].([]string)

		if err := l.Append(ev.ID, ev.Type, led, command, args); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to record event")
		}
	}

	bus.Subscribe(eventbus.EventTypeCommand, record)
	bus.Subscribe(eventbus.EventTypeSessionError, record)
}
