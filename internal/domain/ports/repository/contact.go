package repository

import (
	"context"

	"telegram-bulk-ops/internal/domain/model"
)

// ContactRepository stores passively collected identities and answers the
// candidate queries jobs are built from. Exclusion policy (bots, opted-out,
// blocked, inactive, already-members) lives in these queries, not in callers,
// so every job kind filters the same way.
//
// Ordering of every List* result is stable (first_seen, id) so re-running a
// paused job walks targets in the same order and progress output is
// meaningful to an operator watching a live counter.
type ContactRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Contact) error
	FindByTelegramID(ctx context.Context, tx Tx, telegramID int64) (*model.Contact, error)

	// ListAddCandidates yields contacts not yet members of the group.
	ListAddCandidates(ctx context.Context, tx Tx, groupID string) ([]*model.Target, error)
	// ListReplicateCandidates yields members of source not yet members of target.
	ListReplicateCandidates(ctx context.Context, tx Tx, sourceGroupID, targetGroupID string) ([]*model.Target, error)
	// ListBroadcastTargets yields every reachable, consenting contact the
	// job has not already delivered to, so a resumed broadcast never
	// messages anyone twice.
	ListBroadcastTargets(ctx context.Context, tx Tx, jobID string) ([]*model.Target, error)

	// RecordDelivery marks a broadcast target as handled by the job,
	// whatever the outcome was. Idempotent.
	RecordDelivery(ctx context.Context, tx Tx, jobID, contactID string) error

	MarkBlocked(ctx context.Context, tx Tx, contactID string) error
	MarkInactive(ctx context.Context, tx Tx, contactID string) error
	// MarkOptedOut honors a contact's /optout; it is never cleared automatically.
	MarkOptedOut(ctx context.Context, tx Tx, contactID string) error
}
