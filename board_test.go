package lotboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/lotboard/internal/poller"
)

func boolPtr(b bool) *bool { return &b }

// snapshotHandler serves a fixed GET /api/sensors snapshot and records POSTs.
type snapshotHandler struct {
	mu       sync.Mutex
	readings []poller.Reading
	failing  bool
	posts    [][]byte
}

func (h *snapshotHandler) setFailing(failing bool) {
	h.mu.Lock()
	h.failing = failing
	h.mu.Unlock()
}

func (h *snapshotHandler) postBodies() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.posts...)
}

func (h *snapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		h.posts = append(h.posts, body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"Sensor data processed successfully"}`)
		return
	}

	if h.failing {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"Failed to retrieve sensor data.","error":"boom"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "Sensor data retrieved successfully",
		"data":    h.readings,
	})
}

// startBoard runs board.Start in the background and returns a cleanup that
// cancels the context and waits for Start to return.
func startBoard(t *testing.T, board *Board) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- board.Start(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Start() did not return after context cancellation")
		}
	}
}

func waitForState(t *testing.T, board *Board, want ConnState) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if board.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("board never reached state %v, still %v", want, board.State())
}

func TestBoard_ConnectsAndReconciles(t *testing.T) {
	handler := &snapshotHandler{readings: []poller.Reading{
		{IDSensor: 1, Lot: 1, Available: boolPtr(false)},
		{IDSensor: 2, Lot: 1, Available: boolPtr(true)},
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLot(LotSeed{ID: 1, Name: "Lot A", Capacity: 2}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()

	waitForState(t, board, StateConnected)

	lot, ok := board.Model().Lot(1)
	if !ok {
		t.Fatal("lot 1 missing after reconciliation")
	}
	if lot.Spaces[0].Available {
		t.Error("P1 should be occupied after snapshot")
	}
	if !lot.Spaces[1].Available {
		t.Error("P2 should be available after snapshot")
	}
}

func TestBoard_DisconnectedWhileServerFails(t *testing.T) {
	handler := &snapshotHandler{failing: true}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	var transitions int32
	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLogger(testLogger()),
		WithConnCallback(func(ConnState) { atomic.AddInt32(&transitions, 1) }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()

	// failed cycles keep the board disconnected without firing callbacks:
	// disconnected -> disconnected is not an edge
	time.Sleep(200 * time.Millisecond)
	if board.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", board.State())
	}
	if n := atomic.LoadInt32(&transitions); n != 0 {
		t.Errorf("callbacks fired %d times during repeated failures, want 0", n)
	}
}

func TestBoard_CallbacksFireOnEdgesOnly(t *testing.T) {
	handler := &snapshotHandler{}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	var mu sync.Mutex
	var seen []ConnState
	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLogger(testLogger()),
		WithConnCallback(func(state ConnState) {
			mu.Lock()
			seen = append(seen, state)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()

	waitForState(t, board, StateConnected)
	// several more successful cycles; no further callbacks expected
	time.Sleep(200 * time.Millisecond)

	handler.setFailing(true)
	waitForState(t, board, StateDisconnected)

	handler.setFailing(false)
	waitForState(t, board, StateConnected)

	mu.Lock()
	defer mu.Unlock()
	want := []ConnState{StateConnected, StateDisconnected, StateConnected}
	if len(seen) != len(want) {
		t.Fatalf("callback sequence = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestBoard_PanickingCallbackDoesNotCrash(t *testing.T) {
	handler := &snapshotHandler{}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLogger(testLogger()),
		WithConnCallback(func(ConnState) { panic("callback exploded") }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()

	waitForState(t, board, StateConnected)
}

func TestBoard_StopForcesDisconnected(t *testing.T) {
	handler := &snapshotHandler{}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	waitForState(t, board, StateConnected)
	stop()

	if board.State() != StateDisconnected {
		t.Errorf("State() after stop = %v, want disconnected", board.State())
	}
}

func TestBoard_AddSpacePushesToServer(t *testing.T) {
	handler := &snapshotHandler{}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLot(LotSeed{ID: 1, Name: "Lot A", Capacity: 2}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()
	waitForState(t, board, StateConnected)

	if err := board.Model().AddSpace(1, "P3"); err != nil {
		t.Fatalf("AddSpace() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(handler.postBodies()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	posts := handler.postBodies()
	if len(posts) != 1 {
		t.Fatalf("server received %d posts, want 1", len(posts))
	}

	var got struct {
		IDSensor  int  `json:"idSensor"`
		Lot       int  `json:"lot"`
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(posts[0], &got); err != nil {
		t.Fatalf("pushed body is not valid JSON: %v", err)
	}
	if got.IDSensor != 3 || got.Lot != 1 || !got.Available {
		t.Errorf("pushed reading = %+v, want {3 1 true}", got)
	}
}

func TestToReadings(t *testing.T) {
	in := []poller.Reading{
		{IDSensor: 1, Lot: 2, Available: boolPtr(true)},
		{IDSensor: 3, Lot: 4, Available: boolPtr(false)},
	}

	out := toReadings(in)

	if len(out) != 2 {
		t.Fatalf("toReadings() returned %d readings, want 2", len(out))
	}
	if out[0] != (Reading{SensorID: 1, LotID: 2, Available: true}) {
		t.Errorf("out[0] = %+v", out[0])
	}
	if out[1] != (Reading{SensorID: 3, LotID: 4, Available: false}) {
		t.Errorf("out[1] = %+v", out[1])
	}
}

func TestToReadings_DropsUndefinedAvailable(t *testing.T) {
	in := []poller.Reading{
		{IDSensor: 1, Lot: 1, Available: nil},
		{IDSensor: 2, Lot: 1, Available: boolPtr(false)},
	}

	out := toReadings(in)

	if len(out) != 1 {
		t.Fatalf("toReadings() returned %d readings, want 1", len(out))
	}
	if out[0].SensorID != 2 {
		t.Errorf("kept reading = %+v, want sensor 2", out[0])
	}
}

func TestBoard_SkipsReadingWithoutAvailableKey(t *testing.T) {
	// one degraded element without the available key, one well-formed
	handler := &snapshotHandler{readings: []poller.Reading{
		{IDSensor: 1, Lot: 1, Available: nil},
		{IDSensor: 2, Lot: 1, Available: boolPtr(false)},
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	board, err := New(
		WithServerURL(srv.URL),
		WithPollInterval(50*time.Millisecond),
		WithLot(LotSeed{ID: 1, Name: "Lot A", Capacity: 2}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := startBoard(t, board)
	defer stop()

	waitForState(t, board, StateConnected)

	lot, ok := board.Model().Lot(1)
	if !ok {
		t.Fatal("lot 1 missing after reconciliation")
	}
	if !lot.Spaces[0].Available {
		t.Error("reading without a defined available key was applied: P1 marked occupied")
	}
	if lot.Spaces[1].Available {
		t.Error("well-formed sibling reading was not applied: P2 still available")
	}
}
