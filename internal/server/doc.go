// Package server provides the HTTP surface for LotBoard.
//
// This package is internal to LotBoard and exposes the tracker API over gin:
// the ingestion endpoint (POST /api/sensors, single object or array), the
// snapshot endpoint (GET /api/sensors), a liveness probe, Prometheus metrics
// and the embedded dashboard.
//
// Server-side failures are reported to the HTTP caller as a message plus the
// underlying error text; they are never retried server-side.
package server
