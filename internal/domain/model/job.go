package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-bulk-ops/internal/domain"
)

type JobKind string

const (
	JobKindAddMembers  JobKind = "add-members"
	JobKindReplicate   JobKind = "replicate"
	JobKindMassMessage JobKind = "mass-message"
)

type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStatePaused    JobState = "paused"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// validTransitions is the single source of truth for the job state machine.
// pending → running → {completed, failed, cancelled}, plus running ↔ paused.
// A pending job may also fail (setup error) or be cancelled before it starts,
// and a paused job may be cancelled without resuming.
var validTransitions = map[JobState][]JobState{
	JobStatePending: {JobStateRunning, JobStateFailed, JobStateCancelled},
	JobStateRunning: {JobStatePaused, JobStateCompleted, JobStateFailed, JobStateCancelled},
	JobStatePaused:  {JobStateRunning, JobStateCancelled},
}

func (s JobState) CanTransitionTo(to JobState) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// Job is one bulk operation instance with persisted progress.
// Jobs are never deleted; terminal jobs remain as an audit trail.
type Job struct {
	ID        string
	Kind      JobKind
	State     JobState
	SourceRef string // kind-dependent: source group for replicate, campaign for mass-message
	TargetRef string // destination group for add-members/replicate
	Payload   string // message template for mass-message jobs

	Total     int
	Processed int
	Succeeded int
	Failed    int
	Skipped   int

	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// NewJob creates a pending job with a ULID id so ids sort by creation time.
func NewJob(kind JobKind, sourceRef, targetRef, payload string) (*Job, error) {
	switch kind {
	case JobKindAddMembers, JobKindReplicate:
		if targetRef == "" {
			return nil, domain.ErrInvalidArgument
		}
	case JobKindMassMessage:
		if payload == "" {
			return nil, domain.ErrInvalidArgument
		}
	default:
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return &Job{
		ID:        id.String(),
		Kind:      kind,
		State:     JobStatePending,
		SourceRef: sourceRef,
		TargetRef: targetRef,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition mutates State after validating against the state machine.
func (j *Job) Transition(to JobState) error {
	if !j.State.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	now := time.Now()
	if to == JobStateRunning && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if to.Terminal() {
		j.CompletedAt = &now
	}
	j.State = to
	j.UpdatedAt = now
	return nil
}

// Apply records one target outcome in the aggregate counters.
func (j *Job) Apply(o Outcome) {
	switch o.Class() {
	case OutcomeClassSucceeded:
		j.Succeeded++
	case OutcomeClassSkipped:
		j.Skipped++
	default:
		j.Failed++
	}
	j.Processed++
	j.UpdatedAt = time.Now()
}

// Percent returns completion as 0..100 for operator-facing progress output.
func (j *Job) Percent() int {
	if j.Total <= 0 {
		return 0
	}
	return j.Processed * 100 / j.Total
}
