package redis

import (
	"context"
	"fmt"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

// QueueStats reads per-queue depth counters from the redis instance the job
// infrastructure runs on. The queue system itself (scheduling, retries,
// workers) is external; this client only observes its backlog.
type QueueStats interface {
	PendingCount(ctx context.Context, queue types.QueueName) (int64, error)
}

type queueStats struct {
	log       *logger.Logger
	rdb       *goredis.Client
	keyPrefix string
}

func NewQueueStats(log *logger.Logger, rdb *goredis.Client) QueueStats {
	prefix := strings.TrimSpace(os.Getenv("REDIS_QUEUE_PREFIX"))
	if prefix == "" {
		prefix = "immich:queue"
	}
	return &queueStats{
		log:       log.With("service", "RedisQueueStats"),
		rdb:       rdb,
		keyPrefix: prefix,
	}
}

// PendingCount sums the waiting list length and the active counter for one
// queue. Zero means the queue had drained all work at the time of the call.
func (q *queueStats) PendingCount(ctx context.Context, queue types.QueueName) (int64, error) {
	waitingKey := fmt.Sprintf("%s:%s:waiting", q.keyPrefix, queue)
	activeKey := fmt.Sprintf("%s:%s:active", q.keyPrefix, queue)

	waiting, err := q.rdb.LLen(ctx, waitingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: queue %s depth: %v", types.ErrInfrastructure, queue, err)
	}
	active, err := q.rdb.Get(ctx, activeKey).Int64()
	if err != nil && err != goredis.Nil {
		return 0, fmt.Errorf("%w: queue %s active: %v", types.ErrInfrastructure, queue, err)
	}
	return waiting + active, nil
}
