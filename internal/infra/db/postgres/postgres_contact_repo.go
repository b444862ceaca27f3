package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

var _ repository.ContactRepository = (*contactRepo)(nil)

type contactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *contactRepo {
	return &contactRepo{pool: pool}
}

// eligible is the shared exclusion filter every candidate query starts from.
const eligible = `NOT c.is_bot AND NOT c.opted_out AND NOT c.blocked AND NOT c.inactive`

// targetColumns maps straight onto model.Target; the display name prefers the
// first name and falls back to the username.
const targetColumns = `c.id, c.telegram_id, COALESCE(NULLIF(c.first_name, ''), c.username)`

func (r *contactRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.FirstSeen.IsZero() {
		c.FirstSeen = time.Now()
	}
	c.LastSeen = time.Now()

	// RETURNING id hands back the existing row's id on conflict, so callers
	// always end up with the persisted id in c.ID.
	const q = `
INSERT INTO contacts (id, telegram_id, username, first_name, is_bot, opted_out, blocked, inactive, first_seen, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_seen = EXCLUDED.last_seen
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q,
		c.ID, c.TelegramID, c.Username, c.FirstName,
		c.IsBot, c.OptedOut, c.Blocked, c.Inactive,
		c.FirstSeen, c.LastSeen)
	if err != nil {
		return err
	}
	return row.Scan(&c.ID)
}

func (r *contactRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.Contact, error) {
	row, err := pickRow(ctx, r.pool, tx, `
SELECT id, telegram_id, username, first_name, is_bot, opted_out, blocked, inactive, first_seen, last_seen
FROM contacts WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return nil, err
	}
	var c model.Contact
	err = row.Scan(&c.ID, &c.TelegramID, &c.Username, &c.FirstName,
		&c.IsBot, &c.OptedOut, &c.Blocked, &c.Inactive, &c.FirstSeen, &c.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *contactRepo) ListAddCandidates(ctx context.Context, tx repository.Tx, groupID string) ([]*model.Target, error) {
	q := `
SELECT ` + targetColumns + `
FROM contacts c
WHERE ` + eligible + `
  AND NOT EXISTS (
    SELECT 1 FROM group_members m WHERE m.group_id = $1 AND m.contact_id = c.id)
ORDER BY c.first_seen, c.id;`

	return r.listTargets(ctx, tx, q, groupID)
}

func (r *contactRepo) ListReplicateCandidates(ctx context.Context, tx repository.Tx, sourceGroupID, targetGroupID string) ([]*model.Target, error) {
	q := `
SELECT ` + targetColumns + `
FROM contacts c
JOIN group_members src ON src.contact_id = c.id AND src.group_id = $1
WHERE ` + eligible + `
  AND NOT EXISTS (
    SELECT 1 FROM group_members m WHERE m.group_id = $2 AND m.contact_id = c.id)
ORDER BY c.first_seen, c.id;`

	return r.listTargets(ctx, tx, q, sourceGroupID, targetGroupID)
}

func (r *contactRepo) ListBroadcastTargets(ctx context.Context, tx repository.Tx, jobID string) ([]*model.Target, error) {
	q := `
SELECT ` + targetColumns + `
FROM contacts c
WHERE ` + eligible + `
  AND NOT EXISTS (
    SELECT 1 FROM broadcast_deliveries d WHERE d.job_id = $1 AND d.contact_id = c.id)
ORDER BY c.first_seen, c.id;`

	return r.listTargets(ctx, tx, q, jobID)
}

func (r *contactRepo) RecordDelivery(ctx context.Context, tx repository.Tx, jobID, contactID string) error {
	const q = `
INSERT INTO broadcast_deliveries (job_id, contact_id, recorded_at)
VALUES ($1, $2, now())
ON CONFLICT (job_id, contact_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, jobID, contactID)
	return err
}

func (r *contactRepo) listTargets(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Target, error) {
	rows, err := pickRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Target
	for rows.Next() {
		var t model.Target
		if err := rows.Scan(&t.ContactID, &t.TelegramID, &t.DisplayName); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *contactRepo) MarkBlocked(ctx context.Context, tx repository.Tx, contactID string) error {
	return r.setFlag(ctx, tx, contactID, "blocked")
}

func (r *contactRepo) MarkInactive(ctx context.Context, tx repository.Tx, contactID string) error {
	return r.setFlag(ctx, tx, contactID, "inactive")
}

func (r *contactRepo) MarkOptedOut(ctx context.Context, tx repository.Tx, contactID string) error {
	return r.setFlag(ctx, tx, contactID, "opted_out")
}

func (r *contactRepo) setFlag(ctx context.Context, tx repository.Tx, contactID, col string) error {
	// column picked from a closed set, never from input
	q := `UPDATE contacts SET ` + col + ` = TRUE, last_seen = now() WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, contactID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
