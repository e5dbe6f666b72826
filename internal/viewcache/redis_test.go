package viewcache_test

import (
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suryabasnet/murmur/internal/viewcache"
)

// stalledServer accepts connections and never replies, standing in for a
// wedged Redis.
func stalledServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			if _, err := ln.Accept(); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestRedisRecordReturnsImmediately(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: stalledServer(t)})
	t.Cleanup(func() { client.Close() })

	cache := viewcache.NewRedis(client, time.Minute)

	done := make(chan struct{})
	go func() {
		cache.Record([]uint{1, 2, 3}, "u:1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Record must not wait on the Redis round trip")
	}
}

func TestRedisDrainAllUnreachableIsEmpty(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	cache := viewcache.NewRedis(client, time.Minute)
	assert.Empty(t, cache.DrainAll())
}
