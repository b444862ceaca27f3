package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

var _ repository.GroupRepository = (*groupRepo)(nil)

type groupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *groupRepo {
	return &groupRepo{pool: pool}
}

func (r *groupRepo) Save(ctx context.Context, tx repository.Tx, g *model.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.FirstSeen.IsZero() {
		g.FirstSeen = time.Now()
	}

	// RETURNING id hands back the existing row's id on conflict, so callers
	// always end up with the persisted id in g.ID.
	const q = `
INSERT INTO groups (id, chat_id, ref, title, first_seen)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (chat_id) DO UPDATE SET
  ref = EXCLUDED.ref,
  title = EXCLUDED.title
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, g.ID, g.ChatID, g.Ref, g.Title, g.FirstSeen)
	if err != nil {
		return err
	}
	return row.Scan(&g.ID)
}

// FindByRef accepts either a numeric chat id or a @username reference; the
// leading @ is optional.
func (r *groupRepo) FindByRef(ctx context.Context, tx repository.Tx, ref string) (*model.Group, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}

	var chatID int64
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		chatID = id
	} else if !strings.HasPrefix(ref, "@") {
		ref = "@" + ref
	}

	row, err := pickRow(ctx, r.pool, tx, `
SELECT id, chat_id, ref, title, first_seen
FROM groups
WHERE lower(ref) = lower($1) OR chat_id = $2`, ref, chatID)
	if err != nil {
		return nil, err
	}
	var g model.Group
	if err := row.Scan(&g.ID, &g.ChatID, &g.Ref, &g.Title, &g.FirstSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &g, nil
}

func (r *groupRepo) RecordMembership(ctx context.Context, tx repository.Tx, groupID, contactID string) error {
	const q = `
INSERT INTO group_members (group_id, contact_id, recorded_at)
VALUES ($1, $2, now())
ON CONFLICT (group_id, contact_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, groupID, contactID)
	return err
}
