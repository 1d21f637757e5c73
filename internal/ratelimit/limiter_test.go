package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, windows ...Window) *Limiter {
	t.Helper()
	l, err := New(Config{Defaults: windows})
	require.NoError(t, err)
	return l
}

func TestNewRequiresWindows(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Defaults: []Window{{Duration: 0, Limit: 5}}})
	require.Error(t, err)
}

func TestAcquireNeverExceedsWindowLimit(t *testing.T) {
	t.Parallel()

	const limit = 5
	window := 200 * time.Millisecond
	l := newTestLimiter(t, Window{Duration: window, Limit: limit})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		grants []time.Time
	)
	var wg sync.WaitGroup
	for i := 0; i < limit*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, "euw1:match"); err != nil {
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, limit*3)

	// Every grant must see fewer than `limit` earlier grants inside its
	// trailing window.
	for i, g := range grants {
		inWindow := 0
		for j, other := range grants {
			if j == i {
				continue
			}
			d := g.Sub(other)
			if d > 0 && d < window {
				inWindow++
			}
		}
		assert.Less(t, inWindow, limit, "grant %d saw %d grants in its window", i, inWindow)
	}
}

func TestAcquireHonorsTightestWindow(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t,
		Window{Duration: 100 * time.Millisecond, Limit: 2},
		Window{Duration: time.Hour, Limit: 1000},
	)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(ctx, "na1:match"))
	}
	// Third and fourth permits had to wait for the 100ms window to roll.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireCancellable(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, Window{Duration: time.Hour, Limit: 1})
	require.NoError(t, l.Acquire(context.Background(), "kr:league"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "kr:league")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, Window{Duration: time.Hour, Limit: 1})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "euw1:match"))
	// A different endpoint class on the same platform has its own ceiling.
	require.NoError(t, l.Acquire(ctx, "euw1:league"))
	require.NoError(t, l.Acquire(ctx, "eun1:match"))
}

func TestOverridesReplaceDefaults(t *testing.T) {
	t.Parallel()

	l, err := New(Config{
		Defaults: []Window{{Duration: time.Hour, Limit: 1}},
		Overrides: map[string][]Window{
			"euw1:league": {{Duration: time.Hour, Limit: 3}},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx, "euw1:league"))
	}
	st := l.Status("euw1:league")
	require.Len(t, st, 1)
	assert.Equal(t, 3, st[0].Used)
	assert.Equal(t, 3, st[0].Limit)
}

func TestStatusReportsUsage(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t,
		Window{Duration: 10 * time.Second, Limit: 20},
		Window{Duration: 10 * time.Minute, Limit: 100},
	)
	require.NoError(t, l.Acquire(context.Background(), "br1:match"))

	st := l.Status("br1:match")
	require.Len(t, st, 2)
	assert.Equal(t, 1, st[0].Used)
	assert.Equal(t, 20, st[0].Limit)
	assert.Equal(t, 1, st[1].Used)
}
