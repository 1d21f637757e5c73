// Package discovery finds match candidates: it bootstraps a player frontier
// from the ranked ladders, walks each player's recent match history, and
// accepts participant feedback from the orchestrator so the crawl keeps
// expanding without re-visiting players.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/riot"
)

// ErrSeedExhausted is reported when the frontier drains with no seed source
// left to refill it.
var ErrSeedExhausted = errors.New("seed discovery exhausted")

// API is the slice of the gateway the engine consumes.
type API interface {
	MatchIDsByPUUID(ctx context.Context, p model.Platform, puuid string, queue model.Queue, start, count int, startTime, endTime int64) ([]string, error)
	ChallengerLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error)
	GrandmasterLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error)
	MasterLeague(ctx context.Context, p model.Platform, queue model.Queue) ([]model.LeagueEntry, error)
	LeagueEntries(ctx context.Context, p model.Platform, queue model.Queue, tier, division string, page int) ([]model.LeagueEntry, error)
	SummonerByID(ctx context.Context, p model.Platform, summonerID string) (*model.Summoner, error)
}

// Config tunes one engine run.
type Config struct {
	// Queue filters match histories to one ranked queue.
	Queue model.Queue
	// Seeds is an optional list of player PUUIDs to start from. When empty
	// the engine bootstraps from the ranked ladders.
	Seeds []string
	// PageSize is the match-history page size (default and max 100).
	PageSize int
	// HistoryPages caps how many history pages are read per player.
	HistoryPages int
	// StartTime and EndTime bound the history window in unix seconds;
	// zero means unbounded on that side.
	StartTime int64
	EndTime   int64
	// MaxSeeds caps how many players the ladder bootstrap enqueues.
	MaxSeeds int
	// Tiers lists the tier names paged through when the apex ladders come
	// up empty, in order.
	Tiers []string
	// IdleWait is how long an empty frontier waits for orchestrator
	// feedback before declaring exhaustion.
	IdleWait time.Duration
	// Buffer is the candidate channel capacity.
	Buffer int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 || c.PageSize > 100 {
		c.PageSize = 100
	}
	if c.HistoryPages <= 0 {
		c.HistoryPages = 1
	}
	if c.MaxSeeds <= 0 {
		c.MaxSeeds = 300
	}
	if len(c.Tiers) == 0 {
		c.Tiers = []string{"DIAMOND", "EMERALD"}
	}
	if c.IdleWait <= 0 {
		c.IdleWait = 2 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	return c
}

var divisions = []string{"I", "II", "III", "IV"}

// Engine produces match candidates for one platform. Create a fresh Engine
// per region; visited state is not meant to span platforms.
type Engine struct {
	api API
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	frontier []string
	visited  map[string]struct{}
	seen     map[string]struct{}
	err      error
	done     bool

	wake chan struct{}
}

// New creates an Engine with cfg defaults applied.
func New(api API, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		api:     api,
		cfg:     cfg,
		log:     logger,
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
	e.AddPlayers(cfg.Seeds...)
	return e
}

// AddPlayers enqueues unvisited players onto the frontier. The orchestrator
// calls this with the participants of every match it fetches, closing the
// discovery feedback loop.
func (e *Engine) AddPlayers(puuids ...string) {
	e.mu.Lock()
	added := false
	for _, puuid := range puuids {
		if puuid == "" {
			continue
		}
		if _, ok := e.visited[puuid]; ok {
			continue
		}
		e.visited[puuid] = struct{}{}
		e.frontier = append(e.frontier, puuid)
		added = true
	}
	e.mu.Unlock()

	if added {
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}
}

// Err returns the terminal error after the candidate channel closes. It is
// ErrSeedExhausted when the frontier drained, nil on cancellation, or the
// fatal gateway error that stopped the walk.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Exhausted reports whether the engine stopped because it ran out of seeds.
func (e *Engine) Exhausted() bool {
	return errors.Is(e.Err(), ErrSeedExhausted)
}

// Run walks the frontier and streams newly seen match candidates until the
// context is cancelled, a fatal error occurs, or discovery is exhausted.
// The returned channel is closed when the walk stops.
func (e *Engine) Run(ctx context.Context, p model.Platform) <-chan model.MatchCandidate {
	out := make(chan model.MatchCandidate, e.cfg.Buffer)
	go func() {
		defer close(out)
		if err := e.run(ctx, p, out); err != nil && !errors.Is(err, context.Canceled) {
			e.mu.Lock()
			e.err = err
			e.mu.Unlock()
		}
		e.mu.Lock()
		e.done = true
		e.mu.Unlock()
	}()
	return out
}

func (e *Engine) run(ctx context.Context, p model.Platform, out chan<- model.MatchCandidate) error {
	if e.frontierLen() == 0 {
		if err := e.bootstrap(ctx, p); err != nil {
			return err
		}
	}
	if e.frontierLen() == 0 {
		e.log.Warn("no seeds found for platform", zap.String("platform", p.Code))
		return ErrSeedExhausted
	}

	for {
		puuid, ok := e.next()
		if !ok {
			// Frontier drained; give the orchestrator a beat to feed
			// participants back before giving up.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wake:
				continue
			case <-time.After(e.cfg.IdleWait):
				return ErrSeedExhausted
			}
		}

		if err := e.walkPlayer(ctx, p, puuid, out); err != nil {
			return err
		}
	}
}

// walkPlayer pages through one player's ranked history and emits candidates
// the run has not seen before.
func (e *Engine) walkPlayer(ctx context.Context, p model.Platform, puuid string, out chan<- model.MatchCandidate) error {
	for page := 0; page < e.cfg.HistoryPages; page++ {
		ids, err := e.api.MatchIDsByPUUID(ctx, p, puuid, e.cfg.Queue,
			page*e.cfg.PageSize, e.cfg.PageSize, e.cfg.StartTime, e.cfg.EndTime)
		if err != nil {
			if riot.IsFatal(err) || riot.IsUnavailable(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Player-level failures cost one frontier entry, not the run.
			e.log.Warn("match history fetch failed",
				zap.String("platform", p.Code),
				zap.String("puuid", puuid),
				zap.Error(err))
			return nil
		}

		for _, id := range ids {
			if !e.markSeen(id) {
				continue
			}
			select {
			case out <- model.MatchCandidate{MatchID: id, Platform: p.Code}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(ids) < e.cfg.PageSize {
			return nil
		}
	}
	return nil
}

// bootstrap seeds the frontier from the ranked ladders: the apex leagues
// first, then tier/division pages until MaxSeeds players are queued.
func (e *Engine) bootstrap(ctx context.Context, p model.Platform) error {
	apex := []struct {
		name string
		fn   func(context.Context, model.Platform, model.Queue) ([]model.LeagueEntry, error)
	}{
		{"challenger", e.api.ChallengerLeague},
		{"grandmaster", e.api.GrandmasterLeague},
		{"master", e.api.MasterLeague},
	}
	for _, src := range apex {
		if e.frontierLen() >= e.cfg.MaxSeeds {
			return nil
		}
		entries, err := src.fn(ctx, p, e.cfg.Queue)
		if err != nil {
			if riot.IsFatal(err) || riot.IsUnavailable(err) {
				return err
			}
			e.log.Warn("ladder fetch failed",
				zap.String("platform", p.Code),
				zap.String("ladder", src.name),
				zap.Error(err))
			continue
		}
		if err := e.seedEntries(ctx, p, entries); err != nil {
			return err
		}
	}
	if e.frontierLen() >= e.cfg.MaxSeeds {
		return nil
	}

	for _, tier := range e.cfg.Tiers {
		for _, division := range divisions {
			for page := 1; ; page++ {
				if e.frontierLen() >= e.cfg.MaxSeeds {
					return nil
				}
				entries, err := e.api.LeagueEntries(ctx, p, e.cfg.Queue, tier, division, page)
				if err != nil {
					if riot.IsFatal(err) || riot.IsUnavailable(err) {
						return err
					}
					e.log.Warn("league page fetch failed",
						zap.String("platform", p.Code),
						zap.String("tier", tier),
						zap.String("division", division),
						zap.Int("page", page),
						zap.Error(err))
					break
				}
				if len(entries) == 0 {
					break
				}
				if err := e.seedEntries(ctx, p, entries); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// seedEntries enqueues ladder entries, resolving PUUIDs through the summoner
// endpoint for payloads that omit them.
func (e *Engine) seedEntries(ctx context.Context, p model.Platform, entries []model.LeagueEntry) error {
	for _, entry := range entries {
		if e.frontierLen() >= e.cfg.MaxSeeds {
			return nil
		}
		puuid := entry.PUUID
		if puuid == "" && entry.SummonerID != "" {
			s, err := e.api.SummonerByID(ctx, p, entry.SummonerID)
			if err != nil {
				if riot.IsFatal(err) || riot.IsUnavailable(err) {
					return err
				}
				continue
			}
			puuid = s.PUUID
		}
		if puuid != "" {
			e.AddPlayers(puuid)
		}
	}
	return nil
}

// next pops the oldest frontier entry.
func (e *Engine) next() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frontier) == 0 {
		return "", false
	}
	puuid := e.frontier[0]
	e.frontier = e.frontier[1:]
	return puuid, true
}

func (e *Engine) frontierLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frontier)
}

// markSeen records a match id, reporting whether it was new.
func (e *Engine) markSeen(matchID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[matchID]; ok {
		return false
	}
	e.seen[matchID] = struct{}{}
	return true
}
