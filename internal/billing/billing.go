// Package billing contributes exactly one bit to the rest of the system:
// whether an owner's subscription is active. Stripe's hosted billing portal
// manages the subscription itself; Refresh pulls the lifecycle status back
// and stores the boolean the booking path gates on.
package billing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	stripecustomer "github.com/stripe/stripe-go/v79/customer"
	stripesubscription "github.com/stripe/stripe-go/v79/subscription"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

type Config struct {
	SecretKey string
	ReturnURL string
}

type Service struct {
	owners *storage.OwnerRepository
	logger *slog.Logger
	cfg    Config
}

func New(owners *storage.OwnerRepository, logger *slog.Logger, cfg Config) *Service {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.ReturnURL = strings.TrimSpace(cfg.ReturnURL)
	return &Service{owners: owners, logger: logger, cfg: cfg}
}

func (s *Service) Configured() bool {
	return s.cfg.SecretKey != ""
}

// PortalSession returns a hosted billing portal URL for the owner, creating
// the Stripe customer on first use.
func (s *Service) PortalSession(ctx context.Context, owner model.BusinessOwner) (string, error) {
	if !s.Configured() {
		return "", apperr.New(apperr.KindUnknown, "stripe billing not configured")
	}
	stripe.Key = s.cfg.SecretKey

	customerID := strings.TrimSpace(owner.StripeCustomerID)
	if customerID == "" {
		cust, err := stripecustomer.New(&stripe.CustomerParams{
			Name: stripe.String(owner.DisplayName),
			Params: stripe.Params{
				Metadata: map[string]string{"owner_id": owner.ID},
			},
		})
		if err != nil {
			s.logger.Error("stripe customer create failed", "err", err, "owner_id", owner.ID)
			return "", apperr.Transient("stripe unavailable", err)
		}
		customerID = cust.ID
		if err := s.owners.SetStripeCustomer(ctx, owner.ID, customerID); err != nil {
			return "", err
		}
	}

	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.ReturnURL),
	})
	if err != nil {
		s.logger.Error("stripe portal session create failed", "err", err, "owner_id", owner.ID)
		return "", apperr.Transient("stripe unavailable", err)
	}
	return sess.URL, nil
}

// Refresh reads the owner's subscriptions from Stripe and persists whether
// any is active or trialing. Stripe is the source of truth for lifecycle
// status; we only cache the boolean.
func (s *Service) Refresh(ctx context.Context, owner model.BusinessOwner) (bool, error) {
	if !s.Configured() {
		return owner.SubscriptionActive, nil
	}
	customerID := strings.TrimSpace(owner.StripeCustomerID)
	if customerID == "" {
		return false, nil
	}
	stripe.Key = s.cfg.SecretKey

	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	params.Status = stripe.String("all")
	iter := stripesubscription.List(params)

	active := false
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			active = true
			break
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("stripe subscription list failed", "err", err, "owner_id", owner.ID)
		return owner.SubscriptionActive, apperr.Transient("stripe unavailable", err)
	}

	if active != owner.SubscriptionActive {
		if err := s.owners.SetSubscriptionActive(ctx, owner.ID, active); err != nil {
			return active, err
		}
		s.logger.Info("subscription status changed", "owner_id", owner.ID, "active", active)
	}
	return active, nil
}
