// Package scrape runs the collection loop: regions in sequence, bounded
// concurrent match fetches within a region, idempotent persistence, and
// progress events for every milestone.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/riftwatch/rift-harvester/internal/logging"
	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/progress"
	"github.com/riftwatch/rift-harvester/internal/riot"
	"github.com/riftwatch/rift-harvester/internal/store"
)

// Gateway is the slice of the API client the orchestrator consumes.
type Gateway interface {
	MatchByID(ctx context.Context, p model.Platform, matchID string) (*model.Match, error)
}

// Discoverer produces match candidates for one platform and accepts
// participant feedback.
type Discoverer interface {
	Run(ctx context.Context, p model.Platform) <-chan model.MatchCandidate
	AddPlayers(puuids ...string)
	Err() error
	Exhausted() bool
}

// Config tunes one collection run.
type Config struct {
	// TargetPerRegion is how many matches to persist per platform.
	TargetPerRegion int64
	// GlobalCap bounds the run-wide total; zero means no cap beyond the
	// per-region targets.
	GlobalCap int64
	// MaxConcurrent bounds in-flight match fetches across the whole
	// process, not per region.
	MaxConcurrent int64
	// Patch, when set, is the authoritative "major.minor" filter applied
	// to fetched match details. The history time window only narrows the
	// candidate stream; this check decides.
	Patch string
	// Queue double-checks fetched matches against the configured queue.
	Queue model.Queue
}

// RegionSummary reports one platform's outcome within a run.
type RegionSummary struct {
	Platform  string
	Target    int64
	Collected int64
	Skipped   int64
	Exhausted bool
	Err       string
	Elapsed   time.Duration
}

// RunReport aggregates a full run.
type RunReport struct {
	RunID   uuid.UUID
	Regions []RegionSummary
	Total   int64
}

// Orchestrator drives discovery, fetching, and persistence for a sequence of
// platforms. Regions run one after another; fetches within a region share the
// process-wide concurrency budget.
type Orchestrator struct {
	gw        Gateway
	newEngine func(p model.Platform) Discoverer
	sink      store.Sink
	emitter   progress.Emitter
	sem       *semaphore.Weighted
	log       *zap.Logger
	cfg       Config
}

// New creates an Orchestrator. newEngine is called once per region so each
// platform gets a fresh frontier.
func New(gw Gateway, newEngine func(p model.Platform) Discoverer, sink store.Sink, emitter progress.Emitter, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if gw == nil || newEngine == nil || sink == nil {
		return nil, errors.New("gateway, engine factory, and sink are required")
	}
	if cfg.TargetPerRegion <= 0 {
		return nil, errors.New("target per region must be positive")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Orchestrator{
		gw:        gw,
		newEngine: newEngine,
		sink:      sink,
		emitter:   emitter,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		log:       logger,
		cfg:       cfg,
	}, nil
}

type nopEmitter struct{}

func (nopEmitter) Emit(progress.Event) {}

// Run collects matches for each platform in order. A fatal credential error
// aborts the remaining regions; any other regional failure is recorded and
// the run moves on.
func (o *Orchestrator) Run(ctx context.Context, platforms []model.Platform) (RunReport, error) {
	report := RunReport{RunID: uuid.New()}
	o.emit(progress.Event{RunID: report.RunID, Stage: progress.StageRunStart})
	started := time.Now()

	var runErr error
	for _, p := range platforms {
		target := o.cfg.TargetPerRegion
		if o.cfg.GlobalCap > 0 {
			remaining := o.cfg.GlobalCap - report.Total
			if remaining <= 0 {
				o.log.Info("global cap reached, skipping remaining regions",
					zap.Int64("cap", o.cfg.GlobalCap))
				break
			}
			if remaining < target {
				target = remaining
			}
		}

		summary := o.collectRegion(ctx, report.RunID, p, target)
		report.Regions = append(report.Regions, summary.RegionSummary)
		report.Total += summary.Collected

		if summary.Err != "" && runErr == nil {
			runErr = fmt.Errorf("region %s: %s", p.Code, summary.Err)
		}
		if summary.fatal {
			o.log.Error("fatal error, aborting run", zap.String("platform", p.Code))
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	o.emit(progress.Event{
		RunID: report.RunID,
		Stage: progress.StageRunDone,
		Dur:   time.Since(started),
	})
	return report, runErr
}

// fatal is tracked internally so Run can abort; it is not part of the
// exported summary.
type regionState struct {
	RegionSummary
	fatal bool
}

func (o *Orchestrator) collectRegion(ctx context.Context, runID uuid.UUID, p model.Platform, target int64) (out regionState) {
	started := time.Now()
	out.Platform = p.Code
	out.Target = target
	log := logging.WithRegion(o.log, p.Code)
	o.emit(progress.Event{
		RunID:    runID,
		Stage:    progress.StageRegionStart,
		Platform: p.Code,
		Target:   target,
	})
	log.Info("region start", zap.Int64("target", target))

	regionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := o.newEngine(p)
	candidates := engine.Run(regionCtx, p)

	var collected, skipped atomic.Int64
	var fatalMu sync.Mutex
	var fatalErr error

	g, gctx := errgroup.WithContext(regionCtx)
	for cand := range candidates {
		if collected.Load() >= target {
			cancel()
			break
		}
		if err := o.sem.Acquire(gctx, 1); err != nil {
			break
		}
		cand := cand
		g.Go(func() error {
			defer o.sem.Release(1)
			err := o.process(gctx, runID, p, engine, cand, target, &collected, &skipped)
			if err != nil && (riot.IsFatal(err) || riot.IsUnavailable(err)) {
				fatalMu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				fatalMu.Unlock()
				cancel()
			}
			return err
		})
	}
	waitErr := g.Wait()
	cancel()
	// Drain so the engine goroutine can exit.
	for range candidates {
	}

	out.Collected = collected.Load()
	out.Skipped = skipped.Load()
	out.Exhausted = engine.Exhausted()
	out.Elapsed = time.Since(started)

	fatalMu.Lock()
	stored := fatalErr
	fatalMu.Unlock()
	regionErr := o.regionError(engine, waitErr, stored, out.Collected, target)
	if regionErr != nil {
		out.Err = regionErr.Error()
		out.fatal = riot.IsFatal(regionErr)
		o.emit(progress.Event{
			RunID:     runID,
			Stage:     progress.StageRegionError,
			Platform:  p.Code,
			Collected: out.Collected,
			Target:    target,
			Dur:       out.Elapsed,
			Note:      out.Err,
		})
		log.Warn("region failed",
			zap.Int64("collected", out.Collected),
			zap.Error(regionErr))
		return out
	}

	o.emit(progress.Event{
		RunID:     runID,
		Stage:     progress.StageRegionDone,
		Platform:  p.Code,
		Collected: out.Collected,
		Target:    target,
		Dur:       out.Elapsed,
	})
	log.Info("region done",
		zap.Int64("collected", out.Collected),
		zap.Int64("skipped", out.Skipped),
		zap.Bool("exhausted", out.Exhausted),
		zap.Duration("elapsed", out.Elapsed))
	return out
}

// regionError decides what, if anything, went wrong with a region. Hitting
// the target is success regardless of worker errors caused by the
// cancellation; running dry before the target is reported but not an error.
func (o *Orchestrator) regionError(engine Discoverer, waitErr error, stored error, collected, target int64) error {
	if stored != nil {
		return stored
	}
	if err := engine.Err(); err != nil && (riot.IsFatal(err) || riot.IsUnavailable(err)) {
		return err
	}
	if collected >= target {
		return nil
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// process handles one candidate end to end: dedup, fetch, feedback, filter,
// persist.
func (o *Orchestrator) process(ctx context.Context, runID uuid.UUID, p model.Platform, engine Discoverer, cand model.MatchCandidate, target int64, collected, skipped *atomic.Int64) error {
	if collected.Load() >= target {
		return nil
	}

	exists, err := o.sink.Exists(ctx, cand.MatchID)
	if err != nil {
		return fmt.Errorf("check %s: %w", cand.MatchID, err)
	}
	if exists {
		o.skip(runID, p.Code, cand.MatchID, "duplicate", skipped)
		return nil
	}

	m, err := o.gw.MatchByID(ctx, p, cand.MatchID)
	if err != nil {
		switch {
		case riot.IsFatal(err) || riot.IsUnavailable(err):
			return err
		case errors.Is(err, riot.ErrNotFound) || errors.Is(err, riot.ErrBadRequest):
			o.skip(runID, p.Code, cand.MatchID, "missing", skipped)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			var pe *riot.ParseError
			if errors.As(err, &pe) {
				o.skip(runID, p.Code, cand.MatchID, "bad payload", skipped)
				return nil
			}
			// Retries are exhausted by the gateway; drop the candidate.
			o.log.Warn("match fetch failed",
				zap.String("platform", p.Code),
				zap.String("match_id", cand.MatchID),
				zap.Error(err))
			o.skip(runID, p.Code, cand.MatchID, "fetch failed", skipped)
			return nil
		}
	}

	// Feed participants back before filtering: off-patch matches still
	// connect the player graph.
	puuids := make([]string, 0, len(m.Participants))
	for _, part := range m.Participants {
		puuids = append(puuids, part.PUUID)
	}
	engine.AddPlayers(puuids...)

	if o.cfg.Patch != "" && m.PatchVersion() != o.cfg.Patch {
		o.skip(runID, p.Code, cand.MatchID, "patch "+m.PatchVersion(), skipped)
		return nil
	}
	if o.cfg.Queue != 0 && m.QueueID != o.cfg.Queue.ID() {
		o.skip(runID, p.Code, cand.MatchID, "queue", skipped)
		return nil
	}

	// Reserve a slot under the target before persisting so concurrent
	// workers cannot overshoot it.
	n, ok := reserve(collected, target)
	if !ok {
		return nil
	}
	res, err := o.sink.Upsert(ctx, m)
	if err != nil {
		collected.Add(-1)
		return fmt.Errorf("persist %s: %w", cand.MatchID, err)
	}
	if res == store.AlreadyExists {
		collected.Add(-1)
		o.skip(runID, p.Code, cand.MatchID, "duplicate", skipped)
		return nil
	}

	o.emit(progress.Event{
		RunID:     runID,
		Stage:     progress.StageMatchPersisted,
		Platform:  p.Code,
		MatchID:   cand.MatchID,
		Collected: n,
		Target:    target,
	})
	return nil
}

func reserve(collected *atomic.Int64, target int64) (int64, bool) {
	for {
		cur := collected.Load()
		if cur >= target {
			return 0, false
		}
		if collected.CompareAndSwap(cur, cur+1) {
			return cur + 1, true
		}
	}
}

func (o *Orchestrator) skip(runID uuid.UUID, platform, matchID, reason string, skipped *atomic.Int64) {
	skipped.Add(1)
	o.emit(progress.Event{
		RunID:    runID,
		Stage:    progress.StageMatchSkipped,
		Platform: platform,
		MatchID:  matchID,
		Note:     reason,
	})
}

func (o *Orchestrator) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	o.emitter.Emit(evt)
}
