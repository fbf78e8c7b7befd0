package lotboard

// ConnState represents the connectivity of the board towards the tracker server.
//
// ConnState is a string type with two predefined values: [StateConnected] and
// [StateDisconnected]. Using a string type allows for easy JSON serialization
// and human-readable logging while maintaining type safety through the defined
// constants.
type ConnState string

const (
	// StateConnected indicates the last polling cycle fetched and applied a
	// snapshot successfully.
	StateConnected ConnState = "connected"

	// StateDisconnected indicates the board has not yet completed a cycle, the
	// last fetch or decode failed, or the board was stopped.
	StateDisconnected ConnState = "disconnected"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s ConnState) String() string {
	return string(s)
}

// ConnFunc is a callback invoked when the board's connectivity changes.
//
// Callbacks fire only on state transitions, never on repeated cycles in the
// same state. They are invoked synchronously from the board's polling
// goroutine; long-running work should be dispatched elsewhere. Panics within
// callbacks are recovered and logged; they do not crash the board.
type ConnFunc func(state ConnState)

// Reading is a single sensor observation: one parking space in one lot,
// available or not.
//
// Reading is the unit the reconciliation model consumes. The wire-level
// representations used by the server and the poller are internal and
// converted to this type at the boundary.
type Reading struct {
	// SensorID identifies the sensor (and therefore the space) within a lot.
	SensorID int

	// LotID identifies the parking lot the sensor belongs to.
	LotID int

	// Available reports whether the space is free.
	Available bool
}

// Valid reports whether the reading carries a usable identity.
//
// Readings failing this check are skipped quietly during reconciliation;
// a degraded snapshot must not abort a polling cycle.
func (r Reading) Valid() bool {
	return r.SensorID > 0 && r.LotID > 0
}
