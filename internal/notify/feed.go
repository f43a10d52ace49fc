// Package notify delivers user notifications to a feed the front end polls.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"job-annotation-service/internal/entity"
)

// Feed is a bounded FIFO of notifications. Drain removes and returns the oldest first.
type Feed interface {
	Push(ctx context.Context, n entity.Notification) error
	Drain(ctx context.Context, max int) ([]entity.Notification, error)
}

// redisFeed keeps notifications in a list: LPUSH on the left, RPOP from the
// right, LTRIM so an unread backlog never grows past max.
type redisFeed struct {
	rdb *redis.Client
	key string
	max int64
}

func NewRedisFeed(rdb *redis.Client, key string, max int) Feed {
	if max <= 0 {
		max = 100
	}
	return &redisFeed{rdb: rdb, key: key, max: int64(max)}
}

func (f *redisFeed) Push(ctx context.Context, n entity.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	pipe := f.rdb.TxPipeline()
	pipe.LPush(ctx, f.key, b)
	pipe.LTrim(ctx, f.key, 0, f.max-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (f *redisFeed) Drain(ctx context.Context, max int) ([]entity.Notification, error) {
	if max <= 0 {
		max = int(f.max)
	}
	out := make([]entity.Notification, 0)
	for i := 0; i < max; i++ {
		raw, err := f.rdb.RPop(ctx, f.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return out, err
		}
		var n entity.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			// a foreign value on the key; drop it
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// memoryFeed is used when no Redis is configured.
type memoryFeed struct {
	mu    sync.Mutex
	items []entity.Notification
	max   int
}

func NewMemoryFeed(max int) Feed {
	if max <= 0 {
		max = 100
	}
	return &memoryFeed{max: max}
}

func (f *memoryFeed) Push(_ context.Context, n entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if over := len(f.items) - f.max; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
	return nil
}

func (f *memoryFeed) Drain(_ context.Context, max int) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if max <= 0 || max > len(f.items) {
		max = len(f.items)
	}
	out := append([]entity.Notification(nil), f.items[:max]...)
	f.items = append(f.items[:0:0], f.items[max:]...)
	if out == nil {
		out = []entity.Notification{}
	}
	return out, nil
}
