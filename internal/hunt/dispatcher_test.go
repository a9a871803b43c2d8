package hunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/axju/metrico/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewDispatcherRejectsBadConcurrency(t *testing.T) {
	for _, concurrency := range []int{0, -1} {
		_, err := NewDispatcher(concurrency, 5, testLogger())
		if !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("concurrency %d: expected ErrInvalidConfig, got %v", concurrency, err)
		}
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d, err := NewDispatcher(4, 5, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	outcome := d.Dispatch(context.Background(), nil, 0, func(ctx context.Context, id int64) error {
		t.Errorf("task called for empty batch, id %d", id)
		return nil
	})

	if outcome.Total != 0 || outcome.Succeeded != 0 || outcome.Failed != 0 {
		t.Errorf("unexpected outcome for empty batch: %+v", outcome)
	}
	if outcome.BatchID == "" {
		t.Error("expected a batch id even for an empty batch")
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	ids := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	failing := map[int64]bool{3: true, 7: true}

	d, err := NewDispatcher(4, 5, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	for concurrency := 1; concurrency <= 10; concurrency++ {
		outcome := d.Dispatch(context.Background(), ids, concurrency, func(ctx context.Context, id int64) error {
			if failing[id] {
				return fmt.Errorf("refresh %d broke", id)
			}
			return nil
		})

		if outcome.Succeeded != 8 || outcome.Failed != 2 || outcome.Skipped != 0 {
			t.Errorf("concurrency %d: got %d/%d/%d, want 8/2/0",
				concurrency, outcome.Succeeded, outcome.Failed, outcome.Skipped)
		}
		if len(outcome.Failures) != 2 {
			t.Errorf("concurrency %d: expected 2 failure records, got %d", concurrency, len(outcome.Failures))
		}
		for _, failure := range outcome.Failures {
			if !failing[failure.ID] {
				t.Errorf("concurrency %d: unexpected failure record for id %d", concurrency, failure.ID)
			}
		}
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	// The per-call override must narrow the pool below its default.
	const concurrency = 3

	d, err := NewDispatcher(10, 5, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	var inFlight, peak int64
	var mu sync.Mutex

	ids := make([]int64, 50)
	for i := range ids {
		ids[i] = int64(i)
	}

	outcome := d.Dispatch(context.Background(), ids, concurrency, func(ctx context.Context, id int64) error {
		current := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	})

	if outcome.Succeeded != len(ids) {
		t.Fatalf("expected %d successes, got %d", len(ids), outcome.Succeeded)
	}
	if peak > concurrency {
		t.Errorf("peak in-flight %d exceeded concurrency %d", peak, concurrency)
	}
}

func TestDispatchCapsFailureRecords(t *testing.T) {
	const maxFailures = 5

	d, err := NewDispatcher(2, maxFailures, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ids := make([]int64, 20)
	for i := range ids {
		ids[i] = int64(i)
	}

	outcome := d.Dispatch(context.Background(), ids, 0, func(ctx context.Context, id int64) error {
		return errors.New("broken platform")
	})

	if outcome.Failed != len(ids) {
		t.Fatalf("expected %d failures, got %d", len(ids), outcome.Failed)
	}
	if len(outcome.Failures) != maxFailures {
		t.Errorf("expected failure records capped at %d, got %d", maxFailures, len(outcome.Failures))
	}
}

func TestDispatchCancelledContextSkipsRemaining(t *testing.T) {
	d, err := NewDispatcher(4, 5, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var ran int64
	ids := []int64{1, 2, 3, 4, 5}

	outcome := d.Dispatch(ctx, ids, 1, func(ctx context.Context, id int64) error {
		atomic.AddInt64(&ran, 1)
		cancel()
		return nil
	})

	if outcome.Skipped == 0 {
		t.Error("expected skipped tasks after cancellation")
	}
	if got := outcome.Succeeded + outcome.Failed + outcome.Skipped; got != len(ids) {
		t.Errorf("outcome does not account for all ids: %+v", outcome)
	}
}
