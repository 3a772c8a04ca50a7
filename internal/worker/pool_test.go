package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPool_ProcessesSubmittedKeys(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	p := NewPool(10, func(_ context.Context, key string) error {
		mu.Lock()
		seen[key]++
		mu.Unlock()
		if key == "bad" {
			return errors.New("boom")
		}
		return nil
	}, discard)
	p.Start(3)

	for _, k := range []string{"OM-1", "OM-2", "bad"} {
		assert.True(t, p.Submit(k))
	}
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Equal(t, map[string]int{"OM-1": 1, "OM-2": 1, "bad": 1}, seen)
	assert.False(t, p.Submit("OM-3"), "closed pool rejects work")
}

func TestPool_SkipsKeysAlreadyPending(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p := NewPool(10, func(_ context.Context, _ string) error {
		calls.Add(1)
		<-release
		return nil
	}, discard)
	p.Start(1)

	assert.True(t, p.Submit("OM-1"))
	assert.False(t, p.Submit("OM-1"))
	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_ShutdownTimeoutCancelsHandlers(t *testing.T) {
	p := NewPool(1, func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}, discard)
	p.Start(1)
	require.True(t, p.Submit("OM-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}
