package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

// QueueDepthReader is the slice of the queue backend the barrier needs.
// Satisfied by clients/redis.QueueStats.
type QueueDepthReader interface {
	PendingCount(ctx context.Context, queue types.QueueName) (int64, error)
}

// QueueWaiter blocks until named upstream queues have drained the work that
// was in flight or queued at the time of the call.
//
// This is queue-wide quiescence, not a per-asset guarantee: if the triggering
// event raced ahead of its own downstream job enqueues, those jobs are not
// covered. The next trigger picks up anything missed.
type QueueWaiter interface {
	WaitForQueueCompletion(ctx context.Context, queues ...types.QueueName) error
}

type queueWaiter struct {
	log          *logger.Logger
	reader       QueueDepthReader
	pollInterval time.Duration
	maxWait      time.Duration
}

type QueueWaiterOption func(*queueWaiter)

func WithPollInterval(d time.Duration) QueueWaiterOption {
	return func(w *queueWaiter) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithMaxWait(d time.Duration) QueueWaiterOption {
	return func(w *queueWaiter) {
		if d > 0 {
			w.maxWait = d
		}
	}
}

func NewQueueWaiter(log *logger.Logger, reader QueueDepthReader, opts ...QueueWaiterOption) QueueWaiter {
	w := &queueWaiter{
		log:          log.With("service", "QueueWaiter"),
		reader:       reader,
		pollInterval: 500 * time.Millisecond,
		maxWait:      10 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *queueWaiter) WaitForQueueCompletion(ctx context.Context, queues ...types.QueueName) error {
	if len(queues) == 0 {
		return nil
	}
	deadline := time.Now().Add(w.maxWait)
	started := time.Now()

	// A single zero reading can be the gap between one job finishing and the
	// next being promoted from waiting to active, so drained means two
	// consecutive all-zero rounds.
	zeroRounds := 0
	for {
		pending, err := w.totalPending(ctx, queues)
		if err != nil {
			return err
		}
		if pending == 0 {
			zeroRounds++
			if zeroRounds >= 2 {
				w.log.Debug("Upstream queues drained", "waited", time.Since(started).String())
				return nil
			}
		} else {
			zeroRounds = 0
			if time.Now().After(deadline) {
				return fmt.Errorf("%w: queues not drained after %s (%d jobs pending)", types.ErrInfrastructure, w.maxWait, pending)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *queueWaiter) totalPending(ctx context.Context, queues []types.QueueName) (int64, error) {
	var total int64
	for _, queue := range queues {
		n, err := w.reader.PendingCount(ctx, queue)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
