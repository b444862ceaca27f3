package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/adapter"
	"telegram-bulk-ops/internal/domain/ports/repository"
	"telegram-bulk-ops/internal/infra/logging"
	"telegram-bulk-ops/internal/infra/metrics"
)

// RunnerLock serializes batch runners per job id across processes.
// The redis implementation backs this in production.
type RunnerLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// controlFlags is the cooperative pause/cancel channel between the operator
// surface and a running batch loop. Checked between items, never mid-call.
type controlFlags struct {
	mu     sync.Mutex
	pause  bool
	cancel bool
}

func (f *controlFlags) set(pause, cancel bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pause {
		f.pause = true
	}
	if cancel {
		f.cancel = true
	}
}

func (f *controlFlags) read() (pause, cancel bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pause, f.cancel
}

// BatchRunner drives one job as a single sequential worker: pull targets,
// push each through the retry executor, persist progress after every item,
// notify the observer at fixed intervals. Multiple jobs run as independent
// runners; the rate limiter inside the executor is the only shared budget.
type BatchRunner struct {
	jobs     repository.JobRepository
	contacts repository.ContactRepository
	groups   repository.GroupRepository
	targets  *TargetProvider
	exec     *RetryExecutor
	bot      adapter.ChatBotAdapter
	observer adapter.ProgressObserver
	lock     RunnerLock
	lockTTL  time.Duration
	cfg      config.BatchConfig
	log      *zerolog.Logger

	mu       sync.Mutex
	controls map[string]*controlFlags

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBatchRunner(
	jobs repository.JobRepository,
	contacts repository.ContactRepository,
	groups repository.GroupRepository,
	targets *TargetProvider,
	exec *RetryExecutor,
	bot adapter.ChatBotAdapter,
	observer adapter.ProgressObserver,
	lock RunnerLock,
	lockTTL time.Duration,
	cfg config.BatchConfig,
	logger *zerolog.Logger,
) *BatchRunner {
	runLog := logger.With().Str("component", "BatchRunner").Logger()
	return &BatchRunner{
		jobs:     jobs,
		contacts: contacts,
		groups:   groups,
		targets:  targets,
		exec:     exec,
		bot:      bot,
		observer: observer,
		lock:     lock,
		lockTTL:  lockTTL,
		cfg:      cfg,
		log:      &runLog,
		controls: make(map[string]*controlFlags),
		sleep:    sleepCtx,
	}
}

// RequestPause flags a running job; the loop persists running→paused at the
// next item boundary, together with the progress written so far.
func (r *BatchRunner) RequestPause(jobID string) {
	if f := r.flags(jobID, false); f != nil {
		f.set(true, false)
	}
}

// RequestCancel flags a running job for cancellation at the next boundary.
func (r *BatchRunner) RequestCancel(jobID string) {
	if f := r.flags(jobID, false); f != nil {
		f.set(false, true)
	}
}

// Active reports whether a runner loop currently owns the job in-process.
func (r *BatchRunner) Active(jobID string) bool {
	return r.flags(jobID, false) != nil
}

func (r *BatchRunner) flags(jobID string, create bool) *controlFlags {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.controls[jobID]
	if f == nil && create {
		f = &controlFlags{}
		r.controls[jobID] = f
	}
	return f
}

func (r *BatchRunner) dropFlags(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controls, jobID)
}

// Run executes the job until it pauses, cancels, completes, or fails on
// setup. Calling Run again on a paused job resumes it; the target provider
// excludes already-satisfied targets, so nothing is reprocessed.
func (r *BatchRunner) Run(ctx context.Context, jobID string) error {
	job, err := r.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.State != model.JobStatePending && job.State != model.JobStatePaused {
		return domain.ErrJobNotResumable
	}

	token, err := r.lock.TryLock(ctx, "job_runner:"+jobID, r.lockTTL)
	if err != nil {
		return domain.ErrJobAlreadyRunning
	}
	defer func() { _ = r.lock.Unlock(context.Background(), "job_runner:"+jobID, token) }()

	flags := r.flags(jobID, true)
	defer r.dropFlags(jobID)

	ctx = logging.WithJobID(ctx, jobID)
	log := r.log.With().Str("job_id", jobID).Str("kind", string(job.Kind)).Logger()
	defer logging.TraceDuration(&log, "BatchRunner.Run")()

	group, targets, err := r.setup(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("job setup failed")
		return r.failJob(ctx, job, err)
	}

	if err := r.jobs.SetTotal(ctx, repository.NoTX, jobID, job.Processed+len(targets)); err != nil {
		return r.failJob(ctx, job, err)
	}
	if err := r.jobs.Transition(ctx, repository.NoTX, jobID, model.JobStateRunning); err != nil {
		return err
	}
	job.Total = job.Processed + len(targets)
	job.State = model.JobStateRunning
	metrics.IncJobStarted(string(job.Kind))
	log.Info().Int("targets", len(targets)).Msg("batch run started")

	var errSample []string
	sinceNotify := 0

	for _, target := range targets {
		if pause, cancel := flags.read(); pause || cancel {
			state := model.JobStatePaused
			if cancel {
				state = model.JobStateCancelled
			}
			if err := r.jobs.Transition(ctx, repository.NoTX, jobID, state); err != nil {
				return err
			}
			job.State = state
			r.notify(ctx, job, cancel, errSample)
			log.Info().Str("state", string(state)).Msg("batch run stopped by operator")
			return nil
		}

		outcome, callErr := r.processTarget(ctx, job, group, target)
		if callErr != nil && ctx.Err() != nil {
			// shutdown mid-item: leave the job paused so a restart resumes it
			_ = r.jobs.Transition(context.Background(), repository.NoTX, jobID, model.JobStatePaused)
			return callErr
		}

		r.recordOutcome(ctx, job, group, target, outcome)
		if outcome.Class() == model.OutcomeClassFailed && callErr != nil && len(errSample) < r.cfg.ErrorSample {
			errSample = append(errSample, callErr.Error())
		}

		if err := r.jobs.IncrementProgress(ctx, repository.NoTX, jobID, outcome); err != nil {
			// the side effect may already have happened; surface the store
			// failure instead of silently losing it
			log.Error().Err(err).Msg("progress write failed, aborting run")
			return r.failJob(ctx, job, fmt.Errorf("store failure: %w", err))
		}
		job.Apply(outcome)
		metrics.IncTargetOutcome(string(job.Kind), string(outcome))

		sinceNotify++
		if sinceNotify >= r.cfg.NotifyEvery {
			r.notify(ctx, job, false, nil)
			sinceNotify = 0
		}

		// acceptable-use pacing; a throttle/backoff sleep inside the
		// executor already substitutes for it
		if outcome.Fast() {
			if err := r.sleep(ctx, r.cfg.InterItemDelay); err != nil {
				_ = r.jobs.Transition(context.Background(), repository.NoTX, jobID, model.JobStatePaused)
				return err
			}
		}
	}

	if err := r.jobs.Transition(ctx, repository.NoTX, jobID, model.JobStateCompleted); err != nil {
		return err
	}
	job.State = model.JobStateCompleted
	metrics.IncJobFinished(string(job.Kind), string(model.JobStateCompleted))
	r.notify(ctx, job, true, errSample)
	log.Info().
		Int("succeeded", job.Succeeded).
		Int("failed", job.Failed).
		Int("skipped", job.Skipped).
		Msg("batch run completed")
	return nil
}

// setup validates the destination and resolves the target list. Any error
// here fails the whole job before a single target is touched.
func (r *BatchRunner) setup(ctx context.Context, job *model.Job) (*model.Group, []*model.Target, error) {
	var group *model.Group
	if job.Kind == model.JobKindAddMembers || job.Kind == model.JobKindReplicate {
		var err error
		group, err = r.groups.FindByRef(ctx, repository.NoTX, job.TargetRef)
		if err != nil {
			return nil, nil, fmt.Errorf("destination %q: %w", job.TargetRef, err)
		}
		// reachability probe: a group the bot cannot query is not a
		// destination we can add members to
		if _, err := r.bot.GetChatMemberCount(ctx, group.ChatID); err != nil {
			return nil, nil, fmt.Errorf("destination %q unreachable: %w", job.TargetRef, err)
		}
	}
	targets, err := r.targets.Resolve(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	return group, targets, nil
}

func (r *BatchRunner) processTarget(ctx context.Context, job *model.Job, group *model.Group, target *model.Target) (model.Outcome, error) {
	switch job.Kind {
	case model.JobKindMassMessage:
		text := renderTemplate(job.Payload, target)
		return r.exec.Execute(ctx, "send_message", func(ctx context.Context) error {
			return r.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: target.TelegramID, Text: text})
		})
	default: // add-members, replicate
		return r.exec.Execute(ctx, "add_member", func(ctx context.Context) error {
			return r.bot.AddChatMember(ctx, group.ChatID, target.TelegramID)
		})
	}
}

// recordOutcome feeds per-target results back into contact, membership and
// delivery state so future runs filter them out. Write failures here are
// logged, not fatal: the job's own progress row is the source of truth.
func (r *BatchRunner) recordOutcome(ctx context.Context, job *model.Job, group *model.Group, target *model.Target, outcome model.Outcome) {
	// every outcome is terminal for this target; a resumed broadcast must
	// not revisit it, success or failure
	if job.Kind == model.JobKindMassMessage {
		if err := r.contacts.RecordDelivery(ctx, repository.NoTX, job.ID, target.ContactID); err != nil {
			r.log.Warn().Err(err).Str("contact_id", target.ContactID).Msg("could not record delivery")
		}
	}
	switch outcome {
	case model.OutcomeBlocked:
		if err := r.contacts.MarkBlocked(ctx, repository.NoTX, target.ContactID); err != nil {
			r.log.Warn().Err(err).Str("contact_id", target.ContactID).Msg("could not mark contact blocked")
		}
	case model.OutcomeNotFound:
		if err := r.contacts.MarkInactive(ctx, repository.NoTX, target.ContactID); err != nil {
			r.log.Warn().Err(err).Str("contact_id", target.ContactID).Msg("could not mark contact inactive")
		}
	case model.OutcomeSucceeded, model.OutcomeAlreadyPresent:
		if group != nil {
			if err := r.groups.RecordMembership(ctx, repository.NoTX, group.ID, target.ContactID); err != nil {
				r.log.Warn().Err(err).Str("contact_id", target.ContactID).Msg("could not record membership")
			}
		}
	}
}

func (r *BatchRunner) failJob(ctx context.Context, job *model.Job, cause error) error {
	_ = r.jobs.SetLastError(ctx, repository.NoTX, job.ID, cause.Error())
	if err := r.jobs.Transition(ctx, repository.NoTX, job.ID, model.JobStateFailed); err != nil {
		return err
	}
	job.State = model.JobStateFailed
	job.LastError = cause.Error()
	metrics.IncJobFinished(string(job.Kind), string(model.JobStateFailed))
	r.notify(ctx, job, true, []string{cause.Error()})
	return fmt.Errorf("%w: %v", domain.ErrJobSetup, cause)
}

func (r *BatchRunner) notify(ctx context.Context, job *model.Job, final bool, errSample []string) {
	if r.observer == nil {
		return
	}
	r.observer.Notify(ctx, adapter.ProgressSnapshot{
		JobID:       job.ID,
		Kind:        job.Kind,
		State:       job.State,
		Total:       job.Total,
		Processed:   job.Processed,
		Succeeded:   job.Succeeded,
		Failed:      job.Failed,
		Skipped:     job.Skipped,
		Percent:     job.Percent(),
		Final:       final,
		ErrorSample: errSample,
	})
}

// renderTemplate substitutes the {{name}} placeholder so broadcast bodies can
// be personalized without regenerating content per target.
func renderTemplate(payload string, target *model.Target) string {
	name := target.DisplayName
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(payload, "{{name}}", name)
}
