// Package eventstore keeps the durable history of pipeline runs.
package eventstore

import (
	"context"
	"time"
)

// Store persists run state transitions.
type Store interface {
	// Append records one transition. A zero Timestamp is set to now.
	Append(ctx context.Context, rec RunRecord) error

	// ByRun returns the transitions of one run in append order.
	ByRun(ctx context.Context, runID string) ([]RunRecord, error)

	// Range returns transitions recorded between start and end inclusive.
	Range(ctx context.Context, start, end time.Time) ([]RunRecord, error)

	// Recent returns the latest limit transitions, newest first.
	Recent(ctx context.Context, limit int) ([]RunRecord, error)

	Close() error
}
