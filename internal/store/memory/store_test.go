package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/store"
)

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	m := &model.Match{MatchID: "EUW1_1", GameVersion: "16.3.1.1"}

	res, err := s.Upsert(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, res)

	res, err = s.Upsert(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, store.AlreadyExists, res)

	ok, err := s.Exists(ctx, "EUW1_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "EUW1_2")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConcurrentUpsertsStoreOnce(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var inserted sync.Map
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &model.Match{MatchID: fmt.Sprintf("NA1_%d", i%5)}
			res, err := s.Upsert(ctx, m)
			require.NoError(t, err)
			if res == store.Inserted {
				if _, dup := inserted.LoadOrStore(m.MatchID, true); dup {
					t.Errorf("match %s inserted twice", m.MatchID)
				}
			}
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
