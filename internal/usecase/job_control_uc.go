package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/repository"
	"telegram-bulk-ops/internal/infra/worker"
)

// JobControl is the operator control surface: thin calls into the job store
// and the batch runner, no business logic of its own.
type JobControl interface {
	StartAddMembers(ctx context.Context, targetRef string) (string, error)
	StartReplicate(ctx context.Context, sourceRef, targetRef string) (string, error)
	StartBroadcast(ctx context.Context, campaign, message string) (string, error)
	Pause(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	Cancel(ctx context.Context, jobID string) error
	Status(ctx context.Context, jobID string) (*model.Job, error)
	ListActive(ctx context.Context) ([]*model.Job, error)
	// ResumeActive re-queues jobs a previous process left unfinished.
	ResumeActive(ctx context.Context) (int, error)
}

type jobControl struct {
	jobs   repository.JobRepository
	runner *BatchRunner
	pool   *worker.Pool
	log    *zerolog.Logger
}

func NewJobControl(jobs repository.JobRepository, runner *BatchRunner, pool *worker.Pool, logger *zerolog.Logger) JobControl {
	jcLog := logger.With().Str("component", "JobControl").Logger()
	return &jobControl{jobs: jobs, runner: runner, pool: pool, log: &jcLog}
}

func (c *jobControl) StartAddMembers(ctx context.Context, targetRef string) (string, error) {
	job, err := model.NewJob(model.JobKindAddMembers, "", targetRef, "")
	if err != nil {
		return "", err
	}
	return c.start(ctx, job)
}

func (c *jobControl) StartReplicate(ctx context.Context, sourceRef, targetRef string) (string, error) {
	job, err := model.NewJob(model.JobKindReplicate, sourceRef, targetRef, "")
	if err != nil {
		return "", err
	}
	return c.start(ctx, job)
}

func (c *jobControl) StartBroadcast(ctx context.Context, campaign, message string) (string, error) {
	job, err := model.NewJob(model.JobKindMassMessage, campaign, "", message)
	if err != nil {
		return "", err
	}
	return c.start(ctx, job)
}

func (c *jobControl) start(ctx context.Context, job *model.Job) (string, error) {
	if err := c.jobs.Create(ctx, repository.NoTX, job); err != nil {
		return "", err
	}
	c.log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("job created")
	return job.ID, c.enqueue(job.ID)
}

func (c *jobControl) enqueue(jobID string) error {
	return c.pool.Submit(func(ctx context.Context) error {
		return c.runner.Run(ctx, jobID)
	})
}

func (c *jobControl) Pause(ctx context.Context, jobID string) error {
	job, err := c.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	if job.State != model.JobStateRunning {
		return domain.ErrInvalidTransition
	}
	// the runner persists running→paused at the next item boundary,
	// atomically with the progress written so far
	c.runner.RequestPause(jobID)
	return nil
}

func (c *jobControl) Resume(ctx context.Context, jobID string) error {
	job, err := c.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	if job.State != model.JobStatePaused {
		return domain.ErrJobNotResumable
	}
	return c.enqueue(jobID)
}

func (c *jobControl) Cancel(ctx context.Context, jobID string) error {
	job, err := c.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	switch job.State {
	case model.JobStateRunning:
		c.runner.RequestCancel(jobID)
		return nil
	case model.JobStatePending, model.JobStatePaused:
		// no runner loop owns the job; transition directly
		return c.jobs.Transition(ctx, repository.NoTX, jobID, model.JobStateCancelled)
	default:
		return domain.ErrInvalidTransition
	}
}

func (c *jobControl) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return c.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (c *jobControl) ListActive(ctx context.Context) ([]*model.Job, error) {
	return c.jobs.ListActive(ctx, repository.NoTX)
}

// ResumeActive flips jobs stranded in running state by a crash back to
// paused, then re-queues every paused job. Already-satisfied targets are
// filtered out on resume, so double-processing is limited to at most the
// single item that was in flight.
func (c *jobControl) ResumeActive(ctx context.Context) (int, error) {
	active, err := c.jobs.ListActive(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, job := range active {
		if c.runner.Active(job.ID) {
			continue
		}
		if job.State == model.JobStateRunning {
			if err := c.jobs.Transition(ctx, repository.NoTX, job.ID, model.JobStatePaused); err != nil {
				c.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not park stranded job")
				continue
			}
		}
		if err := c.enqueue(job.ID); err != nil {
			c.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not re-queue job")
			continue
		}
		resumed++
	}
	if resumed > 0 {
		c.log.Info().Int("count", resumed).Msg("resumed unfinished jobs")
	}
	return resumed, nil
}
