package echoapi

import (
	"net/http"
	"testing"

	"github.com/openstud/openstud/core/billing"
)

func Test_billingApi(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	token := env.token(t, alice)

	plans := billing.NewService().Plans()
	free := plans[0]
	for _, p := range plans {
		if p.ID == billing.PlanFree {
			free = p
		}
	}

	env.run(t, []httpTest{
		{name: "plans are public", path: "/v1/billing/plans", wantCode: http.StatusOK, wantData: marchallObj(t, plans)},
		{name: "Auth required", path: "/v1/billing/subscription", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "subscription", path: "/v1/billing/subscription", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, billing.Subscription{UserID: alice.ID, Plan: free, Status: billing.StatusActive}),
		},
		{name: "checkout (missing plan)", method: http.MethodPost, path: "/v1/billing/checkout", token: token, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "checkout (unknown plan)", method: http.MethodPost, path: "/v1/billing/checkout", token: token, body: []byte(`{"plan_id": "lol"}`), wantCode: http.StatusBadRequest},
		{
			name: "checkout", method: http.MethodPost, path: "/v1/billing/checkout", token: token, body: []byte(`{"plan_id": "` + billing.PlanPro + `"}`),
			wantCode: http.StatusNotImplemented, wantData: marchallObj(t, httpErr{Error: billing.ErrNotImplemented.Error()}),
		},
	})
}
