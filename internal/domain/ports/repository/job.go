package repository

import (
	"context"

	"telegram-bulk-ops/internal/domain/model"
)

// JobRepository persists bulk jobs and their progress counters.
//
// All writes are durable before the corresponding external side effect's
// outcome is considered recorded. Progress counters are only ever mutated
// through IncrementProgress so concurrent jobs never lose updates.
type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.Job) error
	// Transition moves the job to newState, rejecting moves the state
	// machine does not allow with domain.ErrInvalidTransition.
	Transition(ctx context.Context, tx Tx, jobID string, newState model.JobState) error
	// IncrementProgress atomically bumps the counter matching the outcome's
	// class together with `processed`.
	IncrementProgress(ctx context.Context, tx Tx, jobID string, outcome model.Outcome) error
	// SetTotal fixes the target count once the candidate list is resolved.
	// On resume the total is processed + remaining, so percentages stay sane.
	SetTotal(ctx context.Context, tx Tx, jobID string, total int) error
	SetLastError(ctx context.Context, tx Tx, jobID string, msg string) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// ListActive returns jobs in a non-terminal state (pending, running or
	// paused), for resumption after a restart.
	ListActive(ctx context.Context, tx Tx) ([]*model.Job, error)
}
