package lotboard

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sentinel errors surfaced by local mutation operations.
var (
	// ErrDuplicateSpace is returned by [Model.AddSpace] when the target lot
	// already contains a space with the requested id. The model is unchanged.
	ErrDuplicateSpace = errors.New("space id already exists in lot")

	// ErrUnknownLot is returned by local mutation operations when the lot id
	// does not name a known lot.
	ErrUnknownLot = errors.New("unknown lot")
)

// Space is a single parking space as tracked by the client model.
//
// Spaces are owned exclusively by the [Model]. A space is created on first
// observation of its id within a lot (from the initial seed or an incoming
// reading), mutated in place on subsequent observations, and removed only by
// an explicit local [Model.RemoveSpaces] call. The sync process never removes
// a space.
type Space struct {
	// ID is the display id, derived from the sensor id as "P<n>".
	ID string `json:"id"`

	// LotID is the owning lot's id, stringified.
	LotID string `json:"lotId"`

	// Available reports whether the space is free.
	Available bool `json:"available"`

	// UpdatedAt is the instant of the last observed update for this space.
	UpdatedAt time.Time `json:"timestamp"`
}

// Lot is a parking lot and its ordered space collection.
type Lot struct {
	// ID is the numeric lot identifier used on the wire.
	ID int `json:"id"`

	// Name is the display name of the lot.
	Name string `json:"name"`

	// Location is a human-readable description of where the lot is.
	Location string `json:"location"`

	// Capacity tracks the local space count. It is recomputed whenever spaces
	// are added or removed locally; it is never derived from the server.
	Capacity int `json:"capacity"`

	// Spaces is the ordered space collection. Space ids are unique within it.
	Spaces []Space `json:"spaces"`
}

// LotStats holds the statistics derived from one lot's merged state.
type LotStats struct {
	// Total is the number of spaces in the lot.
	Total int `json:"total"`

	// Available is the number of free spaces.
	Available int `json:"available"`

	// Occupied is Total minus Available.
	Occupied int `json:"occupied"`

	// OccupancyRate is round(Occupied/Total*100), or 0 for an empty lot.
	OccupancyRate int `json:"occupancy_rate"`
}

// LotSeed describes a lot to pre-populate when constructing a [Model].
//
// A seeded lot starts with Capacity spaces named P1..P<Capacity>, all
// available, mirroring a freshly initialised grid before the first snapshot
// arrives.
type LotSeed struct {
	ID       int
	Name     string
	Location string
	Capacity int
}

// Model is the client-side reconciliation model: an authoritative in-memory
// per-lot collection of spaces, merged incrementally from snapshots.
//
// Model is an explicit state object. Construct it once with [NewModel], hand
// it to the polling driver and the UI layer by reference, and never hold the
// collections at package scope.
//
// All methods are safe for concurrent use. The polling goroutine and local
// user-triggered mutations serialize on an internal mutex, so the merge is
// plain sequential mutation underneath.
type Model struct {
	mu     sync.Mutex
	lots   map[int]*Lot
	order  []int
	push   func(Reading)
	logger *slog.Logger

	// now is the clock used for space timestamps, replaceable in tests.
	now func() time.Time
}

// NewModel creates a [Model] pre-populated from the given seeds.
//
// Seeds are optional; an empty model discovers lots from incoming readings.
// A nil logger falls back to [slog.Default].
func NewModel(seeds []LotSeed, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Model{
		lots:   make(map[int]*Lot, len(seeds)),
		logger: logger,
		now:    time.Now,
	}

	for _, seed := range seeds {
		lot := &Lot{
			ID:       seed.ID,
			Name:     seed.Name,
			Location: seed.Location,
			Capacity: seed.Capacity,
		}
		lot.Spaces = make([]Space, 0, seed.Capacity)
		for i := 1; i <= seed.Capacity; i++ {
			lot.Spaces = append(lot.Spaces, Space{
				ID:        SpaceID(i),
				LotID:     strconv.Itoa(seed.ID),
				Available: true,
				UpdatedAt: m.now(),
			})
		}
		m.lots[seed.ID] = lot
		m.order = append(m.order, seed.ID)
	}

	return m
}

// setPush registers the fire-and-forget sync hook used by [Model.AddSpace].
func (m *Model) setPush(push func(Reading)) {
	m.mu.Lock()
	m.push = push
	m.mu.Unlock()
}

// Reconcile merges one incoming reading into the model.
//
// The target space id is derived as "P<sensor id>" and looked up in the
// target lot's collection. On a match the space's availability is replaced
// and its timestamp refreshed, preserving every other field. On a miss a new
// space is appended. Reconcile is append-only discovery: it never removes a
// space, even when a later snapshot no longer contains it.
//
// Readings without a usable identity (see [Reading.Valid]) are skipped
// quietly and Reconcile returns false; a degraded snapshot must not abort the
// polling cycle. Readings for a lot the model has never seen create the lot
// on the fly with a generated name.
func (m *Model) Reconcile(r Reading) bool {
	if !r.Valid() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[r.LotID]
	if !ok {
		lot = &Lot{
			ID:   r.LotID,
			Name: fmt.Sprintf("Lot %d", r.LotID),
		}
		m.lots[r.LotID] = lot
		m.order = append(m.order, r.LotID)
	}

	id := SpaceID(r.SensorID)
	for i := range lot.Spaces {
		if lot.Spaces[i].ID == id {
			lot.Spaces[i].Available = r.Available
			lot.Spaces[i].UpdatedAt = m.now()
			return true
		}
	}

	lot.Spaces = append(lot.Spaces, Space{
		ID:        id,
		LotID:     strconv.Itoa(r.LotID),
		Available: r.Available,
		UpdatedAt: m.now(),
	})
	return true
}

// ReconcileAll merges a snapshot, one reading at a time, and returns the
// number of readings applied. Invalid readings are skipped per-item.
func (m *Model) ReconcileAll(readings []Reading) int {
	applied := 0
	for _, r := range readings {
		if m.Reconcile(r) {
			applied++
		}
	}
	return applied
}

// Stats derives the UI-facing statistics for one lot.
//
// An unknown or empty lot yields zero stats; the occupancy rate is defined as
// 0 when the lot has no spaces rather than dividing by zero.
func (m *Model) Stats(lotID int) LotStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[lotID]
	if !ok {
		return LotStats{}
	}

	stats := LotStats{Total: len(lot.Spaces)}
	for _, sp := range lot.Spaces {
		if sp.Available {
			stats.Available++
		}
	}
	stats.Occupied = stats.Total - stats.Available
	if stats.Total > 0 {
		stats.OccupancyRate = int(math.Round(float64(stats.Occupied) / float64(stats.Total) * 100))
	}
	return stats
}

// AddSpace appends a new available space to the given lot.
//
// The operation is local-first and optimistic: the space is added and the
// lot's capacity recomputed immediately, then the derived reading is pushed
// to the server asynchronously. A push failure is logged but never rolls back
// the local mutation.
//
// Returns [ErrUnknownLot] if the lot does not exist and [ErrDuplicateSpace]
// if the id is already taken; in both cases the model is unchanged.
func (m *Model) AddSpace(lotID int, spaceID string) error {
	m.mu.Lock()

	lot, ok := m.lots[lotID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownLot, lotID)
	}

	for _, sp := range lot.Spaces {
		if sp.ID == spaceID {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateSpace, spaceID)
		}
	}

	lot.Spaces = append(lot.Spaces, Space{
		ID:        spaceID,
		LotID:     strconv.Itoa(lotID),
		Available: true,
		UpdatedAt: m.now(),
	})
	lot.Capacity = len(lot.Spaces)
	push := m.push
	m.mu.Unlock()

	if push == nil {
		return nil
	}

	sensorID, err := ParseSpaceID(spaceID)
	if err != nil {
		// non-numeric ids stay local-only; there is no sensor to sync
		m.logger.Warn("space id has no sensor id, skipping server sync",
			"space_id", spaceID,
			"lot_id", lotID,
		)
		return nil
	}

	go push(Reading{SensorID: sensorID, LotID: lotID, Available: true})
	return nil
}

// RemoveSpaces removes every listed space id from the given lot and
// recomputes its capacity. Ids not present are ignored. Removal is a
// client-local concept and is never sent to the server.
//
// Returns the number of spaces actually removed, or [ErrUnknownLot].
func (m *Model) RemoveSpaces(lotID int, ids ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[lotID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownLot, lotID)
	}

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	kept := lot.Spaces[:0]
	removed := 0
	for _, sp := range lot.Spaces {
		if _, gone := doomed[sp.ID]; gone {
			removed++
			continue
		}
		kept = append(kept, sp)
	}
	lot.Spaces = kept
	lot.Capacity = len(lot.Spaces)
	return removed, nil
}

// Lot returns a copy of the lot with the given id.
// The copy's space slice is detached; modifying it does not affect the model.
func (m *Model) Lot(lotID int) (Lot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[lotID]
	if !ok {
		return Lot{}, false
	}
	return copyLot(lot), true
}

// Lots returns copies of all lots, seeded lots first in seed order, then
// discovered lots in discovery order.
func (m *Model) Lots() []Lot {
	m.mu.Lock()
	defer m.mu.Unlock()

	lots := make([]Lot, 0, len(m.order))
	for _, id := range m.order {
		lots = append(lots, copyLot(m.lots[id]))
	}
	return lots
}

func copyLot(lot *Lot) Lot {
	cp := *lot
	cp.Spaces = make([]Space, len(lot.Spaces))
	copy(cp.Spaces, lot.Spaces)
	return cp
}

// SpaceID derives the display id for a sensor: 7 becomes "P7".
func SpaceID(sensorID int) string {
	return "P" + strconv.Itoa(sensorID)
}

// ParseSpaceID recovers the sensor id from a display id: "P7" becomes 7.
// The leading marker is case-insensitive. Returns an error if the remainder
// is not a positive integer.
func ParseSpaceID(spaceID string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(spaceID, "P"), "p")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid space id %q", spaceID)
	}
	return n, nil
}
