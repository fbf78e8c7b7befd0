package poller

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the outcome of one polling cycle.
//
// Exactly one of Readings/Err is meaningful: a nil Err carries the decoded
// record set, a non-nil Err marks the cycle as a connectivity failure.
type Snapshot struct {
	// Readings is the full record set fetched from the server.
	Readings []Reading

	// FetchedAt is the timestamp when the cycle completed.
	FetchedAt time.Time

	// Err is the fetch or decode error for a failed cycle, nil otherwise.
	Err error
}

// Scheduler drives the periodic fetch of server snapshots.
//
// The scheduler performs one cycle immediately on start, then repeats at a
// fixed interval until stopped. Each cycle's outcome is emitted on the
// results channel, successful or not; the consumer decides how failures
// affect connectivity.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	client   *Client
	interval time.Duration
	results  chan Snapshot
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a [Scheduler] fetching through the given client at the
// given interval.
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(client *Client, interval time.Duration) *Scheduler {
	return &Scheduler{
		client:   client,
		interval: interval,
		results:  make(chan Snapshot, 1),
	}
}

// Results returns a receive-only channel that emits one [Snapshot] per cycle.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed.
func (s *Scheduler) Results() <-chan Snapshot {
	return s.results
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The scheduler will:
//  1. Fetch a snapshot immediately
//  2. Fetch again every interval
//  3. Continue until [Scheduler.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.cycle(pollCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.cycle(pollCtx)
			}
		}
	}()
}

// cycle performs one fetch and delivers the outcome.
//
// The cancellation token is re-checked between the fetch completing and the
// result being delivered. A fetch that was in flight when Stop was called is
// therefore discarded rather than applied; without this check a
// stop-in-flight cycle could still mutate consumer state after Stop returned.
func (s *Scheduler) cycle(ctx context.Context) {
	readings, err := s.client.FetchSnapshot(ctx)

	if ctx.Err() != nil {
		return
	}

	result := Snapshot{
		Readings:  readings,
		FetchedAt: time.Now(),
		Err:       err,
	}

	select {
	case s.results <- result:
	case <-ctx.Done():
	}
}

// Stop halts the scheduler and waits for the polling loop to exit.
//
// Stop cancels the scheduler's context — aborting any in-flight fetch — and
// blocks until the loop has exited and the results channel is closed. No
// snapshot is delivered after Stop returns.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up client connections after the loop has exited
	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}
