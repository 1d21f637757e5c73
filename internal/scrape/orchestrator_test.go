package scrape

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/progress"
	"github.com/riftwatch/rift-harvester/internal/riot"
	"github.com/riftwatch/rift-harvester/internal/store/memory"
)

// stubEngine feeds a fixed candidate list and records feedback.
type stubEngine struct {
	candidates []model.MatchCandidate
	exhaust    bool

	mu    sync.Mutex
	added []string
}

func (s *stubEngine) Run(ctx context.Context, _ model.Platform) <-chan model.MatchCandidate {
	out := make(chan model.MatchCandidate)
	go func() {
		defer close(out)
		for _, c := range s.candidates {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *stubEngine) AddPlayers(puuids ...string) {
	s.mu.Lock()
	s.added = append(s.added, puuids...)
	s.mu.Unlock()
}

func (s *stubEngine) Err() error {
	if s.exhaust {
		return fmt.Errorf("seed discovery exhausted")
	}
	return nil
}

func (s *stubEngine) Exhausted() bool { return s.exhaust }

func (s *stubEngine) addedPlayers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.added...)
}

// stubGateway serves canned matches keyed by match id.
type stubGateway struct {
	mu      sync.Mutex
	matches map[string]*model.Match
	errs    map[string]error
	fetched []string
}

func (g *stubGateway) MatchByID(_ context.Context, _ model.Platform, matchID string) (*model.Match, error) {
	g.mu.Lock()
	g.fetched = append(g.fetched, matchID)
	g.mu.Unlock()
	if err := g.errs[matchID]; err != nil {
		return nil, err
	}
	m, ok := g.matches[matchID]
	if !ok {
		return nil, riot.ErrNotFound
	}
	return m, nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *captureEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.Stage)
	}
	return out
}

func rankedMatch(id, patch string, puuids ...string) *model.Match {
	m := &model.Match{
		MatchID:     id,
		PlatformID:  "EUW1",
		QueueID:     420,
		GameVersion: patch + ".123.456",
		Team100:     model.Team{TeamID: 100, Win: true},
		Team200:     model.Team{TeamID: 200},
	}
	for _, p := range puuids {
		m.Participants = append(m.Participants, model.Participant{PUUID: p})
	}
	return m
}

func candidates(platform string, ids ...string) []model.MatchCandidate {
	out := make([]model.MatchCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.MatchCandidate{MatchID: id, Platform: platform})
	}
	return out
}

func platforms(t *testing.T, codes ...string) []model.Platform {
	t.Helper()
	ps, err := model.Sequence(codes)
	require.NoError(t, err)
	return ps
}

func TestRunCollectsTargetAndStops(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{}}
	var ids []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("EUW1_%d", i)
		ids = append(ids, id)
		gw.matches[id] = rankedMatch(id, "16.3", fmt.Sprintf("p%d", i))
	}
	engine := &stubEngine{candidates: candidates("euw1", ids...)}
	sink := memory.New()

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		sink, nil,
		Config{TargetPerRegion: 5, MaxConcurrent: 3, Patch: "16.3", Queue: model.QueueSoloDuo},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1"))
	require.NoError(t, err)

	require.Len(t, report.Regions, 1)
	assert.Equal(t, int64(5), report.Regions[0].Collected)
	assert.Equal(t, int64(5), report.Total)
	assert.Empty(t, report.Regions[0].Err)

	n, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestPatchFilterSkipsButFeedsPlayers(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{
		"EUW1_old": rankedMatch("EUW1_old", "16.2", "stale1", "stale2"),
		"EUW1_new": rankedMatch("EUW1_new", "16.3", "fresh1"),
	}}
	engine := &stubEngine{candidates: candidates("euw1", "EUW1_old", "EUW1_new"), exhaust: true}
	sink := memory.New()
	emitter := &captureEmitter{}

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		sink, emitter,
		Config{TargetPerRegion: 10, Patch: "16.3"},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Regions[0].Collected)
	assert.Equal(t, int64(1), report.Regions[0].Skipped)
	assert.True(t, report.Regions[0].Exhausted)

	// The off-patch match still contributed its participants.
	added := engine.addedPlayers()
	assert.Contains(t, added, "stale1")
	assert.Contains(t, added, "fresh1")

	ok, err := sink.Exists(context.Background(), "EUW1_old")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, emitter.stages(), progress.StageMatchSkipped)
	assert.Contains(t, emitter.stages(), progress.StageRegionDone)
}

func TestDuplicateCandidatesPersistOnce(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{
		"EUW1_1": rankedMatch("EUW1_1", "16.3", "p1"),
	}}
	engine := &stubEngine{candidates: candidates("euw1", "EUW1_1", "EUW1_1", "EUW1_1"), exhaust: true}
	sink := memory.New()

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		sink, nil,
		Config{TargetPerRegion: 10, Patch: "16.3", MaxConcurrent: 1},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Regions[0].Collected)
	n, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUnauthorizedAbortsRemainingRegions(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		matches: map[string]*model.Match{},
		errs:    map[string]error{"EUW1_1": riot.ErrUnauthorized},
	}
	var factoryCalls int
	engine := &stubEngine{candidates: candidates("euw1", "EUW1_1")}

	o, err := New(gw,
		func(model.Platform) Discoverer { factoryCalls++; return engine },
		memory.New(), nil,
		Config{TargetPerRegion: 5},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1", "eun1"))
	require.Error(t, err)

	require.Len(t, report.Regions, 1)
	assert.NotEmpty(t, report.Regions[0].Err)
	assert.Equal(t, 1, factoryCalls)
}

func TestExhaustionBeforeTargetIsNotAnError(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{
		"NA1_1": rankedMatch("NA1_1", "16.3", "p1"),
	}}
	engine := &stubEngine{candidates: candidates("na1", "NA1_1"), exhaust: true}

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		memory.New(), nil,
		Config{TargetPerRegion: 50, Patch: "16.3"},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "na1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Regions[0].Collected)
	assert.True(t, report.Regions[0].Exhausted)
	assert.Empty(t, report.Regions[0].Err)
}

func TestGlobalCapLimitsLaterRegions(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{}}
	perRegion := map[string][]string{}
	for _, code := range []string{"euw1", "eun1", "na1"} {
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("%s_%d", code, i)
			perRegion[code] = append(perRegion[code], id)
			gw.matches[id] = rankedMatch(id, "16.3", fmt.Sprintf("%s-p%d", code, i))
		}
	}

	o, err := New(gw,
		func(p model.Platform) Discoverer {
			return &stubEngine{candidates: candidates(p.Code, perRegion[p.Code]...), exhaust: true}
		},
		memory.New(), nil,
		Config{TargetPerRegion: 5, GlobalCap: 7, Patch: "16.3"},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1", "eun1", "na1"))
	require.NoError(t, err)

	assert.Equal(t, int64(7), report.Total)
	require.Len(t, report.Regions, 2)
	assert.Equal(t, int64(5), report.Regions[0].Collected)
	assert.Equal(t, int64(2), report.Regions[1].Collected)
}

func TestRegionLogsCarryPlatformField(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	gw := &stubGateway{matches: map[string]*model.Match{
		"EUW1_1": rankedMatch("EUW1_1", "16.3", "p1"),
	}}
	engine := &stubEngine{candidates: candidates("euw1", "EUW1_1"), exhaust: true}

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		memory.New(), nil,
		Config{TargetPerRegion: 10, Patch: "16.3"},
		zap.New(core))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), platforms(t, "euw1"))
	require.NoError(t, err)

	done := logs.FilterMessage("region done").All()
	require.Len(t, done, 1)
	assert.Equal(t, "euw1", done[0].ContextMap()["platform"])
}

func TestNotFoundCandidatesAreSkipped(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{matches: map[string]*model.Match{
		"EUW1_2": rankedMatch("EUW1_2", "16.3", "p2"),
	}}
	engine := &stubEngine{candidates: candidates("euw1", "EUW1_1", "EUW1_2"), exhaust: true}

	o, err := New(gw,
		func(model.Platform) Discoverer { return engine },
		memory.New(), nil,
		Config{TargetPerRegion: 10, Patch: "16.3"},
		nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), platforms(t, "euw1"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Regions[0].Collected)
	assert.Equal(t, int64(1), report.Regions[0].Skipped)
}
