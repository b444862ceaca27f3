package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

// TargetProvider materializes the ordered candidate list for a job.
//
// Resolve is restartable: candidates that already satisfied the job's goal
// (members of the destination group, contacts the broadcast already delivered
// to, contacts marked blocked/inactive since) are excluded by the repository
// queries, so resuming a paused job never reprocesses completed work.
// Ordering is stable per the repository contract.
type TargetProvider struct {
	contacts repository.ContactRepository
	groups   repository.GroupRepository
	log      *zerolog.Logger
}

func NewTargetProvider(contacts repository.ContactRepository, groups repository.GroupRepository, logger *zerolog.Logger) *TargetProvider {
	tpLog := logger.With().Str("component", "TargetProvider").Logger()
	return &TargetProvider{contacts: contacts, groups: groups, log: &tpLog}
}

// Resolve returns the finite target sequence for the job. A missing group
// reference is a setup failure and surfaces as a wrapped domain.ErrNotFound.
func (p *TargetProvider) Resolve(ctx context.Context, job *model.Job) ([]*model.Target, error) {
	switch job.Kind {
	case model.JobKindAddMembers:
		group, err := p.groups.FindByRef(ctx, repository.NoTX, job.TargetRef)
		if err != nil {
			return nil, fmt.Errorf("resolve target group %q: %w", job.TargetRef, err)
		}
		return p.contacts.ListAddCandidates(ctx, repository.NoTX, group.ID)

	case model.JobKindReplicate:
		source, err := p.groups.FindByRef(ctx, repository.NoTX, job.SourceRef)
		if err != nil {
			return nil, fmt.Errorf("resolve source group %q: %w", job.SourceRef, err)
		}
		target, err := p.groups.FindByRef(ctx, repository.NoTX, job.TargetRef)
		if err != nil {
			return nil, fmt.Errorf("resolve target group %q: %w", job.TargetRef, err)
		}
		return p.contacts.ListReplicateCandidates(ctx, repository.NoTX, source.ID, target.ID)

	case model.JobKindMassMessage:
		return p.contacts.ListBroadcastTargets(ctx, repository.NoTX, job.ID)

	default:
		return nil, fmt.Errorf("job kind %q: %w", job.Kind, domain.ErrInvalidArgument)
	}
}
