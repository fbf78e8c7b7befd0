package lotboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/lotboard/internal/poller"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// Board is the main orchestrator for the client side of the tracker: it polls
// the server for sensor snapshots, reconciles them into a [Model], and tracks
// connectivity.
//
// Board is created with [New] using functional options and started with
// [Board.Start]. The typical lifecycle is:
//
//	board, err := lotboard.New(lotboard.WithServerURL("http://localhost:8080"))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// stop polling; an in-flight fetch at that moment is discarded, never applied.
type Board struct {
	serverURL     string
	pollInterval  time.Duration
	fetchTimeout  time.Duration
	logger        *slog.Logger
	connCallbacks []ConnFunc
	model         *Model

	stateMu sync.Mutex
	state   ConnState
}

// New creates a [Board] with the given options.
//
// A server URL must be configured via [WithServerURL]. Other options have
// sensible defaults:
//   - Poll interval: 2 seconds
//   - Fetch timeout: 10 seconds
//   - Lots: none seeded (discovered from snapshots)
//
// The board starts Disconnected and transitions to Connected on its first
// successful cycle.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		pollInterval: defaultPollInterval,
		fetchTimeout: defaultFetchTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.serverURL == "" {
		return nil, errors.New("a server URL is required")
	}

	// validate seed lot id uniqueness (lots are keyed by id in the model)
	seen := make(map[int]bool, len(cfg.lots))
	for _, seed := range cfg.lots {
		if seen[seed.ID] {
			return nil, fmt.Errorf("duplicate lot id: %d", seed.ID)
		}
		seen[seed.ID] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		serverURL:     cfg.serverURL,
		pollInterval:  cfg.pollInterval,
		fetchTimeout:  cfg.fetchTimeout,
		logger:        logger,
		connCallbacks: cfg.connCallbacks,
		model:         NewModel(cfg.lots, logger),
		state:         StateDisconnected,
	}, nil
}

// Model returns the board's reconciliation model.
//
// The model is shared with the polling loop; all its methods are safe to call
// while the board is running. UI layers read lots and stats from here and
// apply local add/remove mutations through it.
func (b *Board) Model() *Model {
	return b.model
}

// State returns the current connectivity state.
func (b *Board) State() ConnState {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

// PollInterval returns the configured interval between polling cycles.
func (b *Board) PollInterval() time.Duration {
	return b.pollInterval
}

// Start begins polling and blocks until the context is cancelled.
//
// Each cycle fetches a full snapshot from the server and reconciles it into
// the model. A successful cycle transitions the board to [StateConnected]; a
// fetch or decode failure transitions it to [StateDisconnected] and is
// retried by the natural cadence of the next tick — network failures are
// never fatal. Both transitions are idempotent and fire the registered
// [ConnFunc] callbacks only on edges.
//
// On cancellation the board stops the scheduler, discards any in-flight
// fetch, forces [StateDisconnected], and returns nil.
func (b *Board) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b.logger.Info("board starting",
		"server_url", b.serverURL,
		"poll_interval", b.pollInterval.String(),
	)

	client := poller.NewClient(b.serverURL, b.fetchTimeout)
	b.model.setPush(func(r Reading) {
		// best-effort sync of a locally added space; local state is already
		// committed, so a failure is only logged
		pushCtx, cancel := context.WithTimeout(context.Background(), b.fetchTimeout)
		defer cancel()
		available := r.Available
		if err := client.PushReading(pushCtx, poller.Reading{
			IDSensor:  r.SensorID,
			Lot:       r.LotID,
			Available: &available,
		}); err != nil {
			b.logger.Warn("failed to sync added space",
				"sensor_id", r.SensorID,
				"lot_id", r.LotID,
				"error", err.Error(),
			)
		}
	})

	scheduler := poller.NewScheduler(client, b.pollInterval)
	scheduler.Start(ctx)

	for snapshot := range scheduler.Results() {
		if snapshot.Err != nil {
			b.logger.Warn("polling cycle failed", "error", snapshot.Err.Error())
			b.setState(StateDisconnected)
			continue
		}

		applied := b.model.ReconcileAll(toReadings(snapshot.Readings))
		b.logger.Debug("snapshot reconciled",
			"records", len(snapshot.Readings),
			"applied", applied,
		)
		b.setState(StateConnected)
	}

	// results channel closed: context cancelled or scheduler stopped
	scheduler.Stop()
	b.setState(StateDisconnected)
	b.logger.Info("board stopped")
	return nil
}

// setState transitions the connectivity state, invoking callbacks on edges.
func (b *Board) setState(next ConnState) {
	b.stateMu.Lock()
	if b.state == next {
		b.stateMu.Unlock()
		return
	}
	b.state = next
	b.stateMu.Unlock()

	b.logger.Info("connectivity changed", "state", next.String())
	for _, cb := range b.connCallbacks {
		invokeConnFuncSafe(cb, next, b.logger)
	}
}

// toReadings converts wire readings to the public type.
//
// Elements without a defined available key are dropped here: applying them
// would turn an absent key into a spurious "occupied". Identity checks are
// left to the model's per-item validation.
func toReadings(in []poller.Reading) []Reading {
	out := make([]Reading, 0, len(in))
	for _, r := range in {
		if r.Available == nil {
			continue
		}
		out = append(out, Reading{SensorID: r.IDSensor, LotID: r.Lot, Available: *r.Available})
	}
	return out
}

// invokeConnFuncSafe calls a connectivity callback with panic recovery.
// Panics are logged but do not propagate.
func invokeConnFuncSafe(cb ConnFunc, state ConnState, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("connectivity callback panicked",
				"panic", r,
				"state", state.String(),
			)
		}
	}()
	cb(state)
}
