// Package billing exposes the plan catalogue. Payments are not wired to any provider yet.
package billing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"

	StatusActive = "active"
)

var (
	// errors
	ErrNotImplemented = errors.New("billing is not available yet")
	ErrUnknownPlan    = errors.New("unknown plan")

	plans = []Plan{
		{
			ID:       PlanFree,
			Name:     "Free",
			Currency: "USD",
			Features: []string{"Unlimited courses & notes", "Personal workspace", "20 tutor messages per day"},
		},
		{
			ID:         PlanPro,
			Name:       "Pro",
			PriceCents: 499,
			Currency:   "USD",
			Features:   []string{"Everything in Free", "Team workspaces", "Unlimited tutor messages"},
		},
	}
)

type (
	Plan struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		PriceCents int      `json:"price_cents"` // per month
		Currency   string   `json:"currency"`
		Features   []string `json:"features"`
	}

	Subscription struct {
		UserID string `json:"user_id"`
		Plan   Plan   `json:"plan"`
		Status string `json:"status"`
	}

	Checkout struct {
		PlanID string `json:"plan_id" validate:"required"`
	}

	Service interface {
		Plans() []Plan
		Subscription(ctx context.Context, actor user.User) (Subscription, error)
		Checkout(ctx context.Context, actor user.User, co Checkout) error
	}

	service struct{}
)

func NewService() Service {
	return service{}
}

func (service) Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// Subscription always returns the free plan.
func (service) Subscription(_ context.Context, actor user.User) (Subscription, error) {
	free, _ := planByID(PlanFree)
	return Subscription{UserID: actor.ID, Plan: free, Status: StatusActive}, nil
}

func (service) Checkout(_ context.Context, _ user.User, co Checkout) error {
	if _, ok := planByID(co.PlanID); !ok {
		return core.NewValidationError(ErrUnknownPlan, core.FieldError{Field: "plan_id", Error: ErrUnknownPlan.Error()})
	}
	return ErrNotImplemented
}

func planByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
