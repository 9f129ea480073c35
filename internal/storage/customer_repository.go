package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/libs/db"
)

type CustomerRepository struct {
	pool *db.Pool
}

func NewCustomerRepository(pool *db.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) UpsertByExternalID(ctx context.Context, externalID, displayName, avatarURL string) (model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, external_id, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()
		RETURNING id::text, external_id, display_name, avatar_url, created_at
	`, uuid.NewString(), externalID, displayName, avatarURL).Scan(
		&c.ID,
		&c.ExternalID,
		&c.DisplayName,
		&c.AvatarURL,
		&c.CreatedAt,
	)
	return c, err
}

func (r *CustomerRepository) GetByID(ctx context.Context, customerID string) (model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, external_id, display_name, avatar_url, created_at
		FROM customers
		WHERE id = $1
	`, customerID).Scan(
		&c.ID,
		&c.ExternalID,
		&c.DisplayName,
		&c.AvatarURL,
		&c.CreatedAt,
	)
	return c, err
}
