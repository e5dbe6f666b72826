package viewcache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingKey  = "murmur:pending_views"
	drainingKey = "murmur:pending_views:draining"
	dedupPrefix = "murmur:viewed:"

	recordQueueSize = 1024
)

// Redis accumulates pending views in a shared hash so increments from any
// worker process are visible to the single scheduled flush owner. Dedup
// uses SET NX keys whose TTL approximates the flush window.
//
// Record only enqueues; a single background worker talks to Redis, so a
// slow or unreachable server never stalls a request. Views are an
// approximation already, so a full queue drops the batch instead of
// applying backpressure.
type Redis struct {
	client *redis.Client
	window time.Duration
	queue  chan viewBatch
}

type viewBatch struct {
	postIDs     []uint
	fingerprint string
}

func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Hour
	}
	r := &Redis{
		client: client,
		window: window,
		queue:  make(chan viewBatch, recordQueueSize),
	}
	go r.worker()
	return r
}

// Record hands the batch to the worker and returns immediately.
func (r *Redis) Record(postIDs []uint, fingerprint string) {
	if len(postIDs) == 0 {
		return
	}
	ids := make([]uint, len(postIDs))
	copy(ids, postIDs)
	select {
	case r.queue <- viewBatch{postIDs: ids, fingerprint: fingerprint}:
	default:
		log.Printf("viewcache: record queue full, dropping %d views", len(ids))
	}
}

func (r *Redis) worker() {
	for batch := range r.queue {
		r.apply(batch)
	}
}

// apply pipelines the dedup checks, then increments the posts that won
// their SET NX. Errors are logged and dropped.
func (r *Redis) apply(b viewBatch) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fresh := b.postIDs
	if b.fingerprint != "" {
		pipe := r.client.Pipeline()
		checks := make([]*redis.BoolCmd, len(b.postIDs))
		for i, id := range b.postIDs {
			key := fmt.Sprintf("%s%s:%d", dedupPrefix, b.fingerprint, id)
			checks[i] = pipe.SetNX(ctx, key, 1, r.window)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("viewcache: dedup check failed: %v", err)
			return
		}
		fresh = make([]uint, 0, len(b.postIDs))
		for i, id := range b.postIDs {
			if checks[i].Val() {
				fresh = append(fresh, id)
			}
		}
	}
	if len(fresh) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, id := range fresh {
		pipe.HIncrBy(ctx, pendingKey, strconv.FormatUint(uint64(id), 10), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("viewcache: increment failed: %v", err)
	}
}

// DrainAll renames the pending hash aside and reads it, so increments
// arriving mid-drain land in a fresh hash instead of being lost. Any
// failure yields an empty batch; the pending hash stays put for the next
// drain.
func (r *Redis) DrainAll() map[uint]int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(map[uint]int64)

	n, err := r.client.Exists(ctx, pendingKey).Result()
	if err != nil {
		log.Printf("viewcache: drain existence check failed: %v", err)
		return out
	}
	if n == 0 {
		return out
	}

	if err := r.client.Rename(ctx, pendingKey, drainingKey).Err(); err != nil {
		log.Printf("viewcache: drain rename failed: %v", err)
		return out
	}

	fields, err := r.client.HGetAll(ctx, drainingKey).Result()
	if err != nil {
		log.Printf("viewcache: drain read failed: %v", err)
		return out
	}
	for field, value := range fields {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[uint(id)] = n
	}

	if err := r.client.Del(ctx, drainingKey).Err(); err != nil {
		log.Printf("viewcache: drain cleanup failed: %v", err)
	}
	return out
}

// Restore merges a failed flush batch back into the shared hash.
func (r *Redis) Restore(counts map[uint]int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipe := r.client.Pipeline()
	for id, n := range counts {
		pipe.HIncrBy(ctx, pendingKey, strconv.FormatUint(uint64(id), 10), n)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("viewcache: restore failed: %v", err)
	}
}

var (
	_ Cache    = (*Redis)(nil)
	_ Restorer = (*Redis)(nil)
)
