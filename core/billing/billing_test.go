package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
)

func TestService(t *testing.T) {
	svc := NewService()
	usr := user.User{ID: "u1"}

	plans := svc.Plans()
	assert.Len(t, plans, 2)
	plans[0].Name = "changed"
	assert.Equal(t, "Free", svc.Plans()[0].Name)

	sub, err := svc.Subscription(context.Background(), usr)
	assert.NoError(t, err)
	assert.Equal(t, PlanFree, sub.Plan.ID)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "u1", sub.UserID)

	err = svc.Checkout(context.Background(), usr, Checkout{PlanID: "gold"})
	assert.True(t, core.IsValidationError(err))
	assert.Equal(t, ErrNotImplemented, svc.Checkout(context.Background(), usr, Checkout{PlanID: PlanPro}))
}
