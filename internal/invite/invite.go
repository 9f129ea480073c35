// Package invite decides whether an invitation code still grants access.
// Read-only validation never mutates used_count; consumption is a single
// atomic increment that can never oversubscribe.
package invite

import (
	"context"
	"time"

	"github.com/nazmul-hoque/bookline/internal/apperr"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/internal/storage"
)

var (
	ErrExpired   = apperr.Conflict("invitation link expired")
	ErrExhausted = apperr.Conflict("invitation link exhausted")
	ErrInactive  = apperr.Conflict("invitation link deactivated")
)

// LinkStore is the slice of the invite repository the validator needs.
type LinkStore interface {
	GetByCode(ctx context.Context, code string) (model.InvitationLink, error)
	Consume(ctx context.Context, code string, now time.Time) (model.InvitationLink, error)
	Release(ctx context.Context, code string) error
}

// BusinessStore resolves the business summary included in validity payloads.
type BusinessStore interface {
	GetByID(ctx context.Context, businessID string) (model.Business, error)
}

// Validity is the public payload for a code lookup. It is safe to return
// without authentication: it names the business but reveals nothing about
// other tenants.
type Validity struct {
	IsValid       bool
	IsExpired     bool
	IsUsedUp      bool
	IsActive      bool
	BusinessID    string
	BusinessName  string
	InvitedBy     string
	ExpiresAt     time.Time
	RemainingUses int
}

// Assess computes validity flags for a link at instant now.
func Assess(l model.InvitationLink, now time.Time) Validity {
	return Validity{
		IsValid:       l.Usable(now),
		IsExpired:     !now.Before(l.ExpiresAt),
		IsUsedUp:      l.UsedCount >= l.MaxUses,
		IsActive:      l.IsActive,
		BusinessID:    l.BusinessID,
		ExpiresAt:     l.ExpiresAt,
		RemainingUses: l.RemainingUses(),
	}
}

type Validator struct {
	links      LinkStore
	businesses BusinessStore
	now        func() time.Time
}

func NewValidator(links LinkStore, businesses BusinessStore) *Validator {
	return &Validator{links: links, businesses: businesses, now: time.Now}
}

// Validate looks a code up without consuming it.
func (v *Validator) Validate(ctx context.Context, code string) (Validity, error) {
	link, err := v.links.GetByCode(ctx, code)
	if err != nil {
		if storage.IsNotFound(err) {
			return Validity{}, apperr.NotFound("invitation link not found")
		}
		return Validity{}, err
	}

	validity := Assess(link, v.now())
	if biz, err := v.businesses.GetByID(ctx, link.BusinessID); err == nil {
		validity.BusinessName = biz.Name
	}
	validity.InvitedBy = link.CreatedBy
	return validity, nil
}

// Consume burns one use of the code. The increment and all validity guards
// run in one atomic store update; when it matches no row the link is
// reloaded only to classify the failure.
func (v *Validator) Consume(ctx context.Context, code string) (model.InvitationLink, error) {
	link, err := v.links.Consume(ctx, code, v.now())
	if err == nil {
		return link, nil
	}
	if !storage.IsNotFound(err) {
		return model.InvitationLink{}, err
	}

	stale, err := v.links.GetByCode(ctx, code)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.InvitationLink{}, apperr.NotFound("invitation link not found")
		}
		return model.InvitationLink{}, err
	}
	switch {
	case !stale.IsActive:
		return model.InvitationLink{}, ErrInactive
	case !v.now().Before(stale.ExpiresAt):
		return model.InvitationLink{}, ErrExpired
	default:
		return model.InvitationLink{}, ErrExhausted
	}
}

// Release refunds a consumed use when the work the code paid for did not
// happen. A missing row is not an error; the link may have been deleted or
// deactivated in the meantime.
func (v *Validator) Release(ctx context.Context, code string) error {
	err := v.links.Release(ctx, code)
	if err != nil && !storage.IsNotFound(err) {
		return err
	}
	return nil
}
