package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/libs/db"
)

type InviteRepository struct {
	pool *db.Pool
}

func NewInviteRepository(pool *db.Pool) *InviteRepository {
	return &InviteRepository{pool: pool}
}

func (r *InviteRepository) Create(ctx context.Context, businessID, createdBy string, expiresAt time.Time, maxUses int) (model.InvitationLink, error) {
	var l model.InvitationLink
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invitation_links (id, business_id, code, created_by, expires_at, max_uses)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, business_id::text, code, created_by::text,
			expires_at, max_uses, used_count, is_active, created_at
	`, uuid.NewString(), businessID, uuid.NewString(), createdBy, expiresAt, maxUses).Scan(
		&l.ID, &l.BusinessID, &l.Code, &l.CreatedBy,
		&l.ExpiresAt, &l.MaxUses, &l.UsedCount, &l.IsActive, &l.CreatedAt,
	)
	return l, err
}

func (r *InviteRepository) GetByCode(ctx context.Context, code string) (model.InvitationLink, error) {
	var l model.InvitationLink
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, code, created_by::text,
			expires_at, max_uses, used_count, is_active, created_at
		FROM invitation_links
		WHERE code = $1
	`, code).Scan(
		&l.ID, &l.BusinessID, &l.Code, &l.CreatedBy,
		&l.ExpiresAt, &l.MaxUses, &l.UsedCount, &l.IsActive, &l.CreatedAt,
	)
	return l, err
}

// Consume increments used_count by one, guarded by the full validity
// predicate inside a single UPDATE. Two concurrent consumers racing for the
// last use are serialized by the row write lock: exactly one sees the guard
// pass, the other matches no row. used_count can never exceed max_uses.
func (r *InviteRepository) Consume(ctx context.Context, code string, now time.Time) (model.InvitationLink, error) {
	var l model.InvitationLink
	err := r.pool.QueryRow(ctx, `
		UPDATE invitation_links
		SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1
			AND is_active
			AND expires_at > $2
			AND used_count < max_uses
		RETURNING id::text, business_id::text, code, created_by::text,
			expires_at, max_uses, used_count, is_active, created_at
	`, code, now).Scan(
		&l.ID, &l.BusinessID, &l.Code, &l.CreatedBy,
		&l.ExpiresAt, &l.MaxUses, &l.UsedCount, &l.IsActive, &l.CreatedAt,
	)
	return l, err
}

// Release undoes one Consume whose follow-up work failed, so a code holder
// does not lose a use to a slot conflict. It only ever reverses an increment
// this process made; used_count stays within [0, max_uses].
func (r *InviteRepository) Release(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invitation_links
		SET used_count = used_count - 1, updated_at = now()
		WHERE code = $1 AND used_count > 0
	`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}

func (r *InviteRepository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.InvitationLink, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, code, created_by::text,
			expires_at, max_uses, used_count, is_active, created_at
		FROM invitation_links
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InvitationLink
	for rows.Next() {
		var l model.InvitationLink
		if err := rows.Scan(
			&l.ID, &l.BusinessID, &l.Code, &l.CreatedBy,
			&l.ExpiresAt, &l.MaxUses, &l.UsedCount, &l.IsActive, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Deactivate turns the link off. There is no reactivation or used_count
// reset: consumption is monotonic.
func (r *InviteRepository) Deactivate(ctx context.Context, businessID, linkID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invitation_links
		SET is_active = false, updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, linkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}
