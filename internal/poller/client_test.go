package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchSnapshot_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/sensors" {
			t.Errorf("path = %s, want /api/sensors", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"Sensor data retrieved successfully","data":[{"idSensor":1,"lot":2,"available":true},{"idSensor":3,"lot":2,"available":false}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	readings, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}

	if len(readings) != 2 {
		t.Fatalf("FetchSnapshot() returned %d readings, want 2", len(readings))
	}
	if readings[0].IDSensor != 1 || readings[0].Lot != 2 || readings[0].Available == nil || !*readings[0].Available {
		t.Errorf("readings[0] = %+v, want sensor 1 lot 2 available", readings[0])
	}
	if readings[1].IDSensor != 3 || readings[1].Lot != 2 || readings[1].Available == nil || *readings[1].Available {
		t.Errorf("readings[1] = %+v, want sensor 3 lot 2 occupied", readings[1])
	}
}

func TestFetchSnapshot_MissingAvailableKeyDecodesNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"Sensor data retrieved successfully","data":[{"idSensor":1,"lot":1},{"idSensor":2,"lot":1,"available":false}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	readings, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}

	if len(readings) != 2 {
		t.Fatalf("FetchSnapshot() returned %d readings, want 2", len(readings))
	}
	// the degraded element is not an error but must be distinguishable from a
	// defined false, so the consumer can skip it
	if readings[0].Available != nil {
		t.Errorf("readings[0].Available = %v, want nil for a missing key", *readings[0].Available)
	}
	if readings[1].Available == nil || *readings[1].Available {
		t.Errorf("readings[1] = %+v, want a defined false", readings[1])
	}
}

func TestFetchSnapshot_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"Sensor data retrieved successfully","data":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	readings, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("FetchSnapshot() returned %d readings, want 0", len(readings))
	}
}

func TestFetchSnapshot_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"Failed to retrieve sensor data.","error":"db down"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	_, err := client.FetchSnapshot(context.Background())
	if err == nil {
		t.Error("FetchSnapshot() on 500 expected error, got nil")
	}
}

func TestFetchSnapshot_MissingDataArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"ok"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	_, err := client.FetchSnapshot(context.Background())
	if err == nil {
		t.Error("FetchSnapshot() without data array expected error, got nil")
	}
}

func TestFetchSnapshot_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	_, err := client.FetchSnapshot(context.Background())
	if err == nil {
		t.Error("FetchSnapshot() on invalid JSON expected error, got nil")
	}
}

func TestFetchSnapshot_UnreachableServer(t *testing.T) {
	// bind and immediately close to get a dead address
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	defer client.Close()

	_, err := client.FetchSnapshot(context.Background())
	if err == nil {
		t.Error("FetchSnapshot() against closed server expected error, got nil")
	}
}

func TestFetchSnapshot_RespectsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(srv.URL, time.Minute)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.FetchSnapshot(ctx)
	if err == nil {
		t.Error("FetchSnapshot() with cancelled context expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("FetchSnapshot() took %v after cancellation, should abort promptly", elapsed)
	}
}

func TestPushReading_Success(t *testing.T) {
	var got Reading
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body is not a reading: %v", err)
		}
		fmt.Fprint(w, `{"message":"Sensor data processed successfully"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	available := true
	err := client.PushReading(context.Background(), Reading{IDSensor: 7, Lot: 1, Available: &available})
	if err != nil {
		t.Fatalf("PushReading() error = %v", err)
	}

	if got.IDSensor != 7 || got.Lot != 1 || got.Available == nil || !*got.Available {
		t.Errorf("server received %+v, want sensor 7 lot 1 available", got)
	}
}

func TestPushReading_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"Failed to process sensor data.","error":"db down"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	defer client.Close()

	available := true
	err := client.PushReading(context.Background(), Reading{IDSensor: 1, Lot: 1, Available: &available})
	if err == nil {
		t.Error("PushReading() on 500 expected error, got nil")
	}
}

func TestClient_CloseIsSafe(t *testing.T) {
	client := NewClient("http://localhost:9", time.Second)

	// multiple closes must not panic
	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}
