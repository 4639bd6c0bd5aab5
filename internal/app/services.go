package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ledmond/ledmond/internal/config"
	"github.com/ledmond/ledmond/internal/control"
	"github.com/ledmond/ledmond/internal/db"
	"github.com/ledmond/ledmond/internal/eventbus"
	"github.com/ledmond/ledmond/internal/ledger"
	"github.com/ledmond/ledmond/internal/leds"
	"github.com/ledmond/ledmond/internal/reconcile"
	"github.com/ledmond/ledmond/internal/scene"
	"github.com/ledmond/ledmond/internal/store"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Hardware
	Controller leds.Controller

	// Built during Start, once the hardware has been probed
	Store   *store.Store
	Engine  *reconcile.Engine
	Control *control.Server
	Health  *HealthService

	// engineWG tracks the engine goroutine so Stop can wait for the tick
	// in flight before releasing the hardware handle.
	engineWG sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
// Hardware probing is deferred to Start, which takes a context.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Audit ledger is optional: no database path, no ledger.
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	if s.Ledger != nil {
		s.Ledger.Subscribe(s.Bus)
	}

	ctrl, err := leds.OpenI2C(cfg.I2C.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Controller = ctrl

	s.Health = NewHealthService(cfg)

	return s, nil
}

// Start probes the LEDs, seeds the store, runs the optional scene script,
// binds the control socket, and starts all background loops.
// The onFatalError callback is invoked when a background service fails
// terminally (e.g. the accept loop dies).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	probed, err := leds.Probe(ctx, s.Controller)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(probed)).Msg("Probed LEDs")

	s.Store = store.New(probed)

	// Seed pending state from the scene script, if configured. A broken
	// scene is non-fatal; the daemon continues from the probed state.
	if s.cfg.Scene.Script != "" {
		rt := scene.NewRuntime(s.Store)
		if err := rt.RunFile(s.cfg.Scene.Script); err != nil {
			log.Warn().Err(err).Msg("Scene script failed, starting from probed state")
		}
		rt.Close()
	}

	s.Engine = reconcile.New(
		s.Controller,
		s.Store,
		s.cfg.Reconciler.TickInterval.Duration(),
		s.cfg.Reconciler.RateLimitRPS,
	)

	handler := control.NewHandler(s.Store, s.Bus)
	s.Control = control.NewServer(s.cfg.Socket.Path, handler)
	if err := s.Control.Listen(); err != nil {
		return err
	}

	// Background loops
	s.engineWG.Add(1)
	go func() {
		defer s.engineWG.Done()
		if err := s.Engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Reconcile engine error")
		}
	}()

	go func() {
		if err := s.Control.Run(ctx); err != nil {
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()

	if s.Ledger != nil {
		retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
		go s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), retention)
	}

	s.Health.Start(ctx)

	return nil
}

// Stop gracefully stops all services. The app context must already be
// cancelled; Stop waits for the engine's tick in flight before closing the
// hardware handle.
func (s *Services) Stop() error {
	s.engineWG.Wait()
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Controller != nil {
		if err := s.Controller.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close LED controller")
		}
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
