// Package store provides the durable record store for LotBoard.
//
// This package is internal to LotBoard and owns the `sensors` table: one row
// per (idSensor, lot) key carrying the latest known availability flag. The
// key is enforced by a composite unique constraint; writes go through a
// single atomic upsert statement so concurrent ingestions of the same key
// cannot interleave destructively.
//
// The main components are:
//
//   - [Reading]: the wire/storage record and its schema-checked decoder
//   - [Store]: the upsert/scan contract
//   - [Open]: GORM-backed construction with sqlite, postgres or mysql
//
// Rows are never deleted by this subsystem; removal of spaces is a
// client-local concept that is not persisted.
package store
