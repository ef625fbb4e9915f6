package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNew_EmptyAddrDisablesCache(t *testing.T) {
	assert.Nil(t, New("", "", 0, time.Minute))
}

func TestNew_BuildsClientFromOptions(t *testing.T) {
	c := New("127.0.0.1:6390", "secret", 3, 2*time.Minute)
	t.Cleanup(func() { c.Close() })

	opts := c.client.Options()
	assert.Equal(t, "127.0.0.1:6390", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 2*time.Minute, c.ttl)
}

func TestNilClient_IsNoop(t *testing.T) {
	var c *Client
	ctx := context.Background()

	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v")))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}))
	assert.NoError(t, c.Close())

	var dst map[string]int
	assert.False(t, c.GetJSON(ctx, "k", &dst))
}

func TestUnreachableRedis_BehavesLikeMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewWithClient(rdb, time.Minute)
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "novel:1", []byte(`{"id":"1"}`)))

	got, err := c.Get(ctx, "novel:1")
	assert.NoError(t, err)
	assert.Nil(t, got)

	var dst struct{ ID string }
	assert.False(t, c.GetJSON(ctx, "novel:1", &dst))
	assert.NoError(t, c.Delete(ctx, "novel:1"))
}
