package adapter

import (
	"context"

	"telegram-bulk-ops/internal/domain/model"
)

// ProgressSnapshot is what the batch runner reports at fixed intervals and on
// job termination. ErrorSample is bounded (first N raw errors), never an
// unbounded dump.
type ProgressSnapshot struct {
	JobID       string
	Kind        model.JobKind
	State       model.JobState
	Total       int
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	Percent     int
	Final       bool
	ErrorSample []string
}

// ProgressObserver receives job progress. Implementations decide the
// transport (operator chat, log, test capture); the runner never does.
type ProgressObserver interface {
	Notify(ctx context.Context, snap ProgressSnapshot)
}
