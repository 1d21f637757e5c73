// Package store defines the persistence sink contract for collected matches.
// Implementations must be idempotent: persisting the same match twice is a
// no-op reported as AlreadyExists, never an error.
package store

import (
	"context"

	"github.com/riftwatch/rift-harvester/internal/model"
)

// Result reports the outcome of an idempotent upsert.
type Result int

const (
	// Inserted means the match was newly persisted.
	Inserted Result = iota
	// AlreadyExists means a record with the same match id was already present.
	AlreadyExists
)

// String implements fmt.Stringer for logs.
func (r Result) String() string {
	if r == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

// Sink persists normalized match records.
type Sink interface {
	// Upsert stores the match, keyed by its match id.
	Upsert(ctx context.Context, m *model.Match) (Result, error)
	// Exists reports whether a match id has already been persisted.
	Exists(ctx context.Context, matchID string) (bool, error)
	// Count returns the number of persisted matches.
	Count(ctx context.Context) (int64, error)
	// Close releases the sink's resources.
	Close()
}
