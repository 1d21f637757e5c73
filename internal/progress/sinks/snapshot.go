package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/riftwatch/rift-harvester/internal/progress"
)

// RegionSnapshot is the aggregated state of one platform within a run.
type RegionSnapshot struct {
	Platform  string    `json:"platform"`
	Stage     string    `json:"stage"`
	Collected int64     `json:"collected"`
	Target    int64     `json:"target"`
	Skipped   int64     `json:"skipped"`
	UpdatedAt time.Time `json:"updated_at"`
	Note      string    `json:"note,omitempty"`
}

// RunSnapshot is the aggregated state of the current (or last) run.
type RunSnapshot struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	DoneAt    *time.Time       `json:"done_at,omitempty"`
	Regions   []RegionSnapshot `json:"regions"`
}

// SnapshotSink folds the event stream into an in-memory view served by the
// diagnostics API. A new RUN_START resets the snapshot.
type SnapshotSink struct {
	mu      sync.RWMutex
	run     RunSnapshot
	regions map[string]*RegionSnapshot
	order   []string
}

// NewSnapshotSink creates an empty snapshot sink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{regions: make(map[string]*RegionSnapshot)}
}

// Consume folds the batch into the snapshot.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *SnapshotSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.run = RunSnapshot{RunID: evt.RunID.String(), StartedAt: evt.TS}
		s.regions = make(map[string]*RegionSnapshot)
		s.order = nil
	case progress.StageRunDone:
		done := evt.TS
		s.run.DoneAt = &done
	default:
		r := s.region(evt.Platform)
		r.Stage = string(evt.Stage)
		r.UpdatedAt = evt.TS
		if evt.Collected > 0 {
			r.Collected = evt.Collected
		}
		if evt.Target > 0 {
			r.Target = evt.Target
		}
		if evt.Stage == progress.StageMatchSkipped {
			r.Skipped++
		}
		if evt.Note != "" {
			r.Note = evt.Note
		}
	}
}

func (s *SnapshotSink) region(platform string) *RegionSnapshot {
	if r, ok := s.regions[platform]; ok {
		return r
	}
	r := &RegionSnapshot{Platform: platform}
	s.regions[platform] = r
	s.order = append(s.order, platform)
	return r
}

// Snapshot returns a copy of the current run state, regions in the order
// they were first seen.
func (s *SnapshotSink) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.run
	out.Regions = make([]RegionSnapshot, 0, len(s.order))
	for _, platform := range s.order {
		out.Regions = append(out.Regions, *s.regions[platform])
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
