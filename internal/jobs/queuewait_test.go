package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

type fakeDepthReader struct {
	mu     sync.Mutex
	depths map[types.QueueName][]int64
	err    error
	calls  int
}

func (f *fakeDepthReader) PendingCount(ctx context.Context, queue types.QueueName) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	series := f.depths[queue]
	if len(series) == 0 {
		return 0, nil
	}
	n := series[0]
	if len(series) > 1 {
		f.depths[queue] = series[1:]
	}
	return n, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestWaitForQueueCompletion(t *testing.T) {
	t.Run("returns_once_all_queues_drain", func(t *testing.T) {
		reader := &fakeDepthReader{
			depths: map[types.QueueName][]int64{
				types.QueueFaceDetection:     {3, 1, 0},
				types.QueueFacialRecognition: {2, 0, 0},
			},
		}
		w := NewQueueWaiter(testLogger(t), reader, WithPollInterval(time.Millisecond))
		err := w.WaitForQueueCompletion(context.Background(), types.QueueFaceDetection, types.QueueFacialRecognition)
		if err != nil {
			t.Fatalf("WaitForQueueCompletion: %v", err)
		}
	})

	t.Run("zero_blip_needs_a_confirming_round", func(t *testing.T) {
		// Queue reads 0 for one round while a job is being promoted, then
		// shows work again. The waiter must not declare the queue drained on
		// that first zero.
		reader := &fakeDepthReader{
			depths: map[types.QueueName][]int64{
				types.QueueSmartSearch: {0, 2, 0, 0},
			},
		}
		w := NewQueueWaiter(testLogger(t), reader, WithPollInterval(time.Millisecond))
		err := w.WaitForQueueCompletion(context.Background(), types.QueueSmartSearch)
		if err != nil {
			t.Fatalf("WaitForQueueCompletion: %v", err)
		}
		if reader.calls != 4 {
			t.Fatalf("calls=%d, want 4 (two zero rounds after the blip)", reader.calls)
		}
	})

	t.Run("no_queues_is_noop", func(t *testing.T) {
		reader := &fakeDepthReader{}
		w := NewQueueWaiter(testLogger(t), reader)
		if err := w.WaitForQueueCompletion(context.Background()); err != nil {
			t.Fatalf("WaitForQueueCompletion: %v", err)
		}
		if reader.calls != 0 {
			t.Fatalf("expected no backend calls, got %d", reader.calls)
		}
	})

	t.Run("infra_error_propagates", func(t *testing.T) {
		reader := &fakeDepthReader{err: types.ErrInfrastructure}
		w := NewQueueWaiter(testLogger(t), reader, WithPollInterval(time.Millisecond))
		err := w.WaitForQueueCompletion(context.Background(), types.QueueSidecar)
		if !errors.Is(err, types.ErrInfrastructure) {
			t.Fatalf("expected ErrInfrastructure, got %v", err)
		}
	})

	t.Run("context_cancellation_aborts_wait", func(t *testing.T) {
		reader := &fakeDepthReader{
			depths: map[types.QueueName][]int64{
				types.QueueMetadataExtraction: {5},
			},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		w := NewQueueWaiter(testLogger(t), reader, WithPollInterval(5*time.Millisecond))
		err := w.WaitForQueueCompletion(ctx, types.QueueMetadataExtraction)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context deadline, got %v", err)
		}
	})

	t.Run("times_out_when_queue_never_drains", func(t *testing.T) {
		reader := &fakeDepthReader{
			depths: map[types.QueueName][]int64{
				types.QueueSmartSearch: {1},
			},
		}
		w := NewQueueWaiter(testLogger(t), reader,
			WithPollInterval(time.Millisecond),
			WithMaxWait(10*time.Millisecond),
		)
		err := w.WaitForQueueCompletion(context.Background(), types.QueueSmartSearch)
		if !errors.Is(err, types.ErrInfrastructure) {
			t.Fatalf("expected ErrInfrastructure timeout, got %v", err)
		}
	})
}
