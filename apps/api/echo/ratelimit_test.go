package echoapi

import (
	"net/http"
	"testing"

	"github.com/openstud/openstud/core"
)

func Test_rateLimiter(t *testing.T) {
	env := setup(t, func(conf *core.Config) {
		conf.Server.AuthRateLimit = 0.001
		conf.Server.AuthRateBurst = 2
	})

	body := marchallObj(t, LoginRequest{Username: "nobody", Password: "lol"})
	tooMany := marchallObj(t, httpErr{Error: "too many requests"})

	env.run(t, []httpTest{
		{name: "1st attempt", method: http.MethodPost, path: "/v1/users/login", body: body, wantCode: http.StatusBadRequest},
		{name: "2nd attempt", method: http.MethodPost, path: "/v1/users/login", body: body, wantCode: http.StatusBadRequest},
		{name: "3rd attempt", method: http.MethodPost, path: "/v1/users/login", body: body, wantCode: http.StatusTooManyRequests, wantData: tooMany},
		{name: "other routes are not limited", path: "/", wantCode: http.StatusOK},
	})

	t.Run("clients are limited separately", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		req.RemoteAddr = "203.0.113.7:4242"
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusBadRequest)
		}
	})
}
