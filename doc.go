// Package lotboard provides a parking-space occupancy tracker: a server that
// persists the latest known per-space sensor state and a client SDK that
// polls it and reconciles partial updates into a consistent per-lot view.
//
// The client side follows an SDK-first design. A [Board] is configured with
// functional options and started with [Board.Start]; it polls the server at
// a fixed interval, merges each snapshot into its [Model], and tracks
// connectivity as a two-state machine.
//
// # Quick Start
//
// Create a board and start it with graceful shutdown:
//
//	board, _ := lotboard.New(
//	    lotboard.WithServerURL("http://localhost:8080"),
//	    lotboard.WithLot(lotboard.LotSeed{ID: 1, Name: "Lot A", Capacity: 20}),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Reconciliation
//
// The [Model] merges incoming readings by identity: a reading for a known
// space replaces its availability in place, a reading for an unknown space
// appends a new one. Reconciliation never removes spaces — only the explicit
// local [Model.RemoveSpaces] does. Statistics are derived from the merged
// state via [Model.Stats].
//
// Local mutations are optimistic: [Model.AddSpace] commits locally first and
// syncs to the server in the background, logging (but never propagating) a
// push failure.
//
// # Architecture
//
// The module consists of several packages:
//
//   - internal/poller: Cancellable fixed-interval snapshot polling
//   - internal/store: Durable sensor record store (GORM, upsert-by-key)
//   - internal/server: HTTP API and dashboard server (gin)
//   - dashboard: Embedded web UI assets
//   - config: YAML configuration for the CLI
//   - cmd/lotboard: serve / watch / simulate / validate CLI
//
// The internal packages are not part of the public API and may change
// without notice. The server is deployed as a single binary using Go's embed
// directive for static assets.
package lotboard
