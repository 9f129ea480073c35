package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/libs/db"
)

type OwnerRepository struct {
	pool *db.Pool
}

func NewOwnerRepository(pool *db.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

// UpsertByExternalID creates the owner row on first chat-app login and
// refreshes profile fields on every subsequent one.
func (r *OwnerRepository) UpsertByExternalID(ctx context.Context, externalID, displayName, avatarURL string) (model.BusinessOwner, error) {
	var o model.BusinessOwner
	err := r.pool.QueryRow(ctx, `
		INSERT INTO business_owners (id, external_id, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()
		RETURNING id::text, external_id, display_name, avatar_url,
			COALESCE(stripe_customer_id, ''), subscription_active, created_at
	`, uuid.NewString(), externalID, displayName, avatarURL).Scan(
		&o.ID,
		&o.ExternalID,
		&o.DisplayName,
		&o.AvatarURL,
		&o.StripeCustomerID,
		&o.SubscriptionActive,
		&o.CreatedAt,
	)
	return o, err
}

func (r *OwnerRepository) GetByID(ctx context.Context, ownerID string) (model.BusinessOwner, error) {
	var o model.BusinessOwner
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, external_id, display_name, avatar_url,
			COALESCE(stripe_customer_id, ''), subscription_active, created_at
		FROM business_owners
		WHERE id = $1
	`, ownerID).Scan(
		&o.ID,
		&o.ExternalID,
		&o.DisplayName,
		&o.AvatarURL,
		&o.StripeCustomerID,
		&o.SubscriptionActive,
		&o.CreatedAt,
	)
	return o, err
}

func (r *OwnerRepository) SetStripeCustomer(ctx context.Context, ownerID, stripeCustomerID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE business_owners
		SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1
	`, ownerID, stripeCustomerID)
	return err
}

func (r *OwnerRepository) SetSubscriptionActive(ctx context.Context, ownerID string, active bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE business_owners
		SET subscription_active = $2, updated_at = now()
		WHERE id = $1
	`, ownerID, active)
	return err
}
