package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, kind, state, source_ref, target_ref, payload,
total, processed, succeeded, failed, skipped,
last_error, created_at, started_at, completed_at, updated_at`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO bulk_jobs (id, kind, state, source_ref, target_ref, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Kind), string(job.State),
		job.SourceRef, job.TargetRef, job.Payload,
		job.CreatedAt, job.UpdatedAt)
	return err
}

// transitionSources inverts the state machine: the set of states that may
// legally move to `to`. Guarding the UPDATE with it makes concurrent
// transitions safe without a row lock.
func transitionSources(to model.JobState) []string {
	var out []string
	for _, from := range []model.JobState{
		model.JobStatePending, model.JobStateRunning, model.JobStatePaused,
		model.JobStateCompleted, model.JobStateFailed, model.JobStateCancelled,
	} {
		if from.CanTransitionTo(to) {
			out = append(out, string(from))
		}
	}
	return out
}

func (r *jobRepo) Transition(ctx context.Context, tx repository.Tx, jobID string, newState model.JobState) error {
	const q = `
UPDATE bulk_jobs SET
  state = $2,
  started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
  completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE completed_at END,
  updated_at = now()
WHERE id = $1 AND state = ANY($3);`

	tag, err := execSQL(ctx, r.pool, tx, q, jobID, string(newState), transitionSources(newState))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// disambiguate: missing row vs. illegal transition
		row, err := pickRow(ctx, r.pool, tx, `SELECT state FROM bulk_jobs WHERE id = $1`, jobID)
		if err != nil {
			return err
		}
		var current string
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *jobRepo) IncrementProgress(ctx context.Context, tx repository.Tx, jobID string, outcome model.Outcome) error {
	// column picked from a closed switch, never from input
	var col string
	switch outcome.Class() {
	case model.OutcomeClassSucceeded:
		col = "succeeded"
	case model.OutcomeClassSkipped:
		col = "skipped"
	default:
		col = "failed"
	}
	q := `
UPDATE bulk_jobs SET
  processed = processed + 1,
  ` + col + ` = ` + col + ` + 1,
  updated_at = now()
WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) SetTotal(ctx context.Context, tx repository.Tx, jobID string, total int) error {
	const q = `UPDATE bulk_jobs SET total = $2, updated_at = now() WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, jobID, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) SetLastError(ctx context.Context, tx repository.Tx, jobID string, msg string) error {
	const q = `UPDATE bulk_jobs SET last_error = $2, updated_at = now() WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, jobID, msg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM bulk_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// ListActive returns every job that still needs a runner. Pending is included:
// a queued job whose process dies before the pool picks it up must still be
// found by the recovery sweep.
func (r *jobRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM bulk_jobs WHERE state IN ('pending', 'running', 'paused') ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	var kind, state string
	err := row.Scan(
		&job.ID, &kind, &state, &job.SourceRef, &job.TargetRef, &job.Payload,
		&job.Total, &job.Processed, &job.Succeeded, &job.Failed, &job.Skipped,
		&job.LastError, &job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	job.Kind = model.JobKind(kind)
	job.State = model.JobState(state)
	return &job, nil
}
