package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

// AlbumLocker serializes membership writes per album across concurrent
// evaluation tasks. The read-current-then-write-union step in reconciliation
// must not race with itself on the same album; cross-album writes need no
// ordering.
type AlbumLocker interface {
	// Lock blocks until the album lock is held or ctx is done. The returned
	// release func is safe to call once.
	Lock(ctx context.Context, albumID uuid.UUID) (release func(), err error)
}

type albumLocker struct {
	log       *logger.Logger
	rdb       *goredis.Client
	ttl       time.Duration
	retryWait time.Duration
}

func NewAlbumLocker(log *logger.Logger, rdb *goredis.Client) AlbumLocker {
	return &albumLocker{
		log:       log.With("service", "RedisAlbumLocker"),
		rdb:       rdb,
		ttl:       30 * time.Second,
		retryWait: 50 * time.Millisecond,
	}
}

func (l *albumLocker) Lock(ctx context.Context, albumID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("immich:album_lock:%s", albumID)
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: album lock: %v", types.ErrInfrastructure, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}

	release := func() {
		// Delete only our own token so an expired lock reclaimed by another
		// task is not released from under it.
		const script = `
      if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
      end
      return 0
    `
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.rdb.Eval(ctx, script, []string{key}, token).Err(); err != nil {
			l.log.Warn("Failed to release album lock", "album_id", albumID, "error", err)
		}
	}
	return release, nil
}
