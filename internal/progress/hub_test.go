package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func runEvent(stage Stage, platform string) Event {
	return Event{
		RunID:    uuid.New(),
		TS:       time.Now().UTC(),
		Stage:    stage,
		Platform: platform,
	}
}

func TestHubDeliversEventsToSinks(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatch: 2, MaxWait: 10 * time.Millisecond}, sink)

	hub.Emit(runEvent(StageRunStart, ""))
	hub.Emit(runEvent(StageRegionStart, "euw1"))
	hub.Emit(runEvent(StageRegionDone, "euw1"))

	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, StageRunStart, events[0].Stage)
	assert.Equal(t, "euw1", events[1].Platform)
	assert.True(t, sink.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	// Missing run id and platform.
	hub.Emit(Event{Stage: StageRegionStart, TS: time.Now()})
	hub.Emit(Event{RunID: uuid.New(), TS: time.Now(), Stage: StageMatchPersisted, Platform: "na1"})

	require.NoError(t, hub.Close(context.Background()))
	assert.Empty(t, sink.snapshot())
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, &captureSink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	// Emits after close are silently discarded.
	hub.Emit(runEvent(StageRunStart, ""))
}

func TestEventValidation(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	now := time.Now()

	valid := Event{RunID: id, TS: now, Stage: StageMatchPersisted, Platform: "euw1", MatchID: "EUW1_1"}
	assert.NoError(t, valid.Validate())

	cases := map[string]Event{
		"missing run id":     {TS: now, Stage: StageRunStart},
		"missing timestamp":  {RunID: id, Stage: StageRunStart},
		"unknown stage":      {RunID: id, TS: now, Stage: "BOGUS"},
		"region no platform": {RunID: id, TS: now, Stage: StageRegionDone},
		"match no id":        {RunID: id, TS: now, Stage: StageMatchPersisted, Platform: "euw1"},
		"negative duration":  {RunID: id, TS: now, Stage: StageRunDone, Dur: -time.Second},
	}
	for name, evt := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, evt.Validate())
		})
	}
}
