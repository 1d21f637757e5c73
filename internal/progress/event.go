// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the collection engine uses to report run progress. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as Prometheus metrics or the diagnostics snapshot.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRegionStart    Stage = "REGION_START"
	StageRegionDone     Stage = "REGION_DONE"
	StageRegionError    Stage = "REGION_ERROR"
	StageMatchPersisted Stage = "MATCH_PERSISTED"
	StageMatchSkipped   Stage = "MATCH_SKIPPED"
)

// Event captures a single milestone of a collection run.
type Event struct {
	// RunID identifies one invocation of the orchestrator.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which run, region, or match milestone occurred.
	Stage Stage
	// Platform scopes region and match events to a platform code.
	Platform string
	// MatchID is set on match events.
	MatchID string
	// Collected is the cumulative persisted-match count for the platform.
	Collected int64
	// Target is the per-region collection goal, set on region events.
	Target int64
	// Dur captures wall time for completed regions and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as error text or
	// a skip reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageRegionStart, StageRegionDone, StageRegionError:
		if e.Platform == "" {
			return errors.New("region events require a platform")
		}
	case StageMatchPersisted, StageMatchSkipped:
		if e.Platform == "" {
			return errors.New("match events require a platform")
		}
		if e.MatchID == "" {
			return errors.New("match events require a match id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
