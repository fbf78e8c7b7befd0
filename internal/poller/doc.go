// Package poller provides the polling driver for LotBoard.
//
// This package is internal to LotBoard and handles the periodic fetching of
// sensor snapshots from the tracker server, plus the fire-and-forget push of
// locally added spaces.
//
// The main components are:
//
//   - [Client]: HTTP client for the /api/sensors endpoints
//   - [Scheduler]: Cancellable fixed-interval fetch loop
//   - [Snapshot]: Outcome of a single polling cycle
//
// Users of the lotboard library should not need to interact with this
// package directly. Configuration is done through the main lotboard package.
package poller
