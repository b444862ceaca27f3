package repository

import (
	"context"

	"telegram-bulk-ops/internal/domain/model"
)

// GroupRepository stores chats the bot has seen and their observed membership.
type GroupRepository interface {
	Save(ctx context.Context, tx Tx, g *model.Group) error
	// FindByRef resolves an operator-facing reference (@username or chat id).
	FindByRef(ctx context.Context, tx Tx, ref string) (*model.Group, error)
	// RecordMembership upserts one (group, contact) pair; fed both by passive
	// collection and by successful add-member outcomes.
	RecordMembership(ctx context.Context, tx Tx, groupID, contactID string) error
}
