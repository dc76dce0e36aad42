package session

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cmdCounter counts commands sent to Redis. A pipeline counts each of its
// commands and one round trip.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func newCountedStore(t *testing.T) (*Store, *cmdCounter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Ping(context.Background()).Err())
	counter := &cmdCounter{}
	rdb.AddHook(counter)
	return NewStore(rdb, "", nil), counter
}

func TestPutIsOneRoundTrip(t *testing.T) {
	store, counter := newCountedStore(t)

	require.NoError(t, store.Put(context.Background(), testRecord(), time.Hour))
	assert.Equal(t, int64(1), counter.pipelines.Load())
	// MULTI, two SETs, EXEC
	assert.LessOrEqual(t, counter.commands.Load(), int64(4))
}

func TestGetIsOneCommand(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testRecord(), time.Hour))
	counter.reset()

	rec, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), counter.commands.Load())
}

func TestRefreshBudget(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()
	rec := testRecord()
	require.NoError(t, store.Put(ctx, rec, time.Hour))

	// EVALSHA misses once and falls back to EVAL.
	counter.reset()
	ok, err := store.Refresh(ctx, rec, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.LessOrEqual(t, counter.commands.Load(), int64(2))

	counter.reset()
	ok, err = store.Refresh(ctx, rec, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), counter.commands.Load())
}

func TestDeleteSessionBudget(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testRecord(), time.Hour))
	counter.reset()

	require.NoError(t, store.DeleteSession(ctx, "sid-1"))
	// GET for the owner, then the delete script (EVALSHA + EVAL on first use)
	assert.LessOrEqual(t, counter.commands.Load(), int64(3))
}
