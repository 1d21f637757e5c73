package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftwatch/rift-harvester/internal/progress"
)

func TestSnapshotFoldsRun(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	runID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	batch := []progress.Event{
		{RunID: runID, TS: base, Stage: progress.StageRunStart},
		{RunID: runID, TS: base.Add(time.Second), Stage: progress.StageRegionStart, Platform: "euw1", Target: 50},
		{RunID: runID, TS: base.Add(2 * time.Second), Stage: progress.StageMatchPersisted, Platform: "euw1", MatchID: "EUW1_1", Collected: 1},
		{RunID: runID, TS: base.Add(3 * time.Second), Stage: progress.StageMatchSkipped, Platform: "euw1", MatchID: "EUW1_2", Note: "duplicate"},
		{RunID: runID, TS: base.Add(4 * time.Second), Stage: progress.StageMatchPersisted, Platform: "euw1", MatchID: "EUW1_3", Collected: 2},
		{RunID: runID, TS: base.Add(5 * time.Second), Stage: progress.StageRegionDone, Platform: "euw1", Collected: 2, Dur: 4 * time.Second},
		{RunID: runID, TS: base.Add(6 * time.Second), Stage: progress.StageRegionStart, Platform: "eun1", Target: 50},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap := sink.Snapshot()
	assert.Equal(t, runID.String(), snap.RunID)
	assert.Nil(t, snap.DoneAt)
	require.Len(t, snap.Regions, 2)

	euw := snap.Regions[0]
	assert.Equal(t, "euw1", euw.Platform)
	assert.Equal(t, string(progress.StageRegionDone), euw.Stage)
	assert.Equal(t, int64(2), euw.Collected)
	assert.Equal(t, int64(50), euw.Target)
	assert.Equal(t, int64(1), euw.Skipped)

	assert.Equal(t, "eun1", snap.Regions[1].Platform)
}

func TestSnapshotResetsOnNewRun(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: first, TS: now, Stage: progress.StageRunStart},
		{RunID: first, TS: now, Stage: progress.StageRegionStart, Platform: "na1"},
		{RunID: first, TS: now, Stage: progress.StageRunDone},
	}))

	snap := sink.Snapshot()
	require.NotNil(t, snap.DoneAt)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: second, TS: now.Add(time.Minute), Stage: progress.StageRunStart},
	}))

	snap = sink.Snapshot()
	assert.Equal(t, second.String(), snap.RunID)
	assert.Nil(t, snap.DoneAt)
	assert.Empty(t, snap.Regions)
}
