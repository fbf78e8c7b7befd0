package lotboard

import (
	"errors"
	"log/slog"
	"net/url"
	"time"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	serverURL     string
	pollInterval  time.Duration
	fetchTimeout  time.Duration
	lots          []LotSeed
	logger        *slog.Logger
	connCallbacks []ConnFunc
}

// Option is a function that configures a [Board] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithServerURL], [WithPollInterval], [WithFetchTimeout],
// [WithLot], [WithLots], [WithLogger], [WithConnCallback].
type Option func(*boardConfig) error

// WithServerURL sets the base URL of the tracker server to poll.
//
// The URL must include a scheme (http:// or https://) and is required for
// [New] to succeed.
//
// Example:
//
//	board, err := lotboard.New(
//	    lotboard.WithServerURL("http://localhost:8080"),
//	)
func WithServerURL(rawURL string) Option {
	return func(cfg *boardConfig) error {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid server URL: " + err.Error())
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("server URL must have an http:// or https:// scheme")
		}
		cfg.serverURL = rawURL
		return nil
	}
}

// WithPollInterval sets how often the server snapshot is fetched.
//
// Defaults to 2 seconds if not specified. The interval is assumed to be
// larger than one round trip; cycles never overlap because the polling loop
// is sequential.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithFetchTimeout sets the per-request timeout for snapshot fetches and
// space pushes. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithLot seeds a single parking lot into the board's model.
//
// A seeded lot starts fully available with Capacity spaces P1..P<n>. Can be
// called multiple times. Lots are optional; unseeded lots are discovered from
// incoming snapshots.
func WithLot(seed LotSeed) Option {
	return func(cfg *boardConfig) error {
		cfg.lots = append(cfg.lots, seed)
		return nil
	}
}

// WithLots seeds multiple parking lots at once.
// Equivalent to calling [WithLot] multiple times.
func WithLots(seeds ...LotSeed) Option {
	return func(cfg *boardConfig) error {
		cfg.lots = append(cfg.lots, seeds...)
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the board.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithConnCallback registers a function invoked on connectivity transitions.
//
// Callbacks fire on edges only: Disconnected to Connected on the first
// successful cycle, Connected to Disconnected on a failed cycle or stop.
// Multiple callbacks may be registered; they execute in registration order.
//
// Callbacks are invoked synchronously from the polling goroutine. Panics
// within callbacks are recovered and logged; they do not crash the board.
//
// Example:
//
//	board, err := lotboard.New(
//	    lotboard.WithServerURL("http://localhost:8080"),
//	    lotboard.WithConnCallback(func(state lotboard.ConnState) {
//	        log.Printf("connectivity: %s", state)
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithConnCallback(cb ConnFunc) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.connCallbacks = append(cfg.connCallbacks, cb)
		return nil
	}
}
