package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core/pending"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/testutil"
)

func Test_home(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to OpenStud API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	testutil.CreateUser(t, env.usrRepo, "Alice", "alice1", "alice@test.cd", "s3cret!pwd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog01", "ndog@test.cd", "s3cret!pwd", []string{user.RoleStudent}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	failed := marchallObj(t, httpErr{Error: "authentication failed"})

	env.run(t, []httpTest{
		{name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("bob", "s3cret!pwd"), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("alice1", "lol"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("ndog01", "s3cret!pwd"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{"alice1", "ALICE@test.cd"} {
		t.Run("success with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", login(uname, "s3cret!pwd"))
			env.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)

			req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
			env.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func Test_userApi_signup(t *testing.T) {
	env := setup(t)

	body := marchallObj(t, user.NewUser{
		Name:            "Alice",
		Username:        "Alice01",
		Email:           "alice@test.cd",
		Password:        "s3cret!pwd",
		PasswordConfirm: "s3cret!pwd",
		Roles:           []string{user.RoleAdminOwner},
	})

	req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var usr user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
	assert.Equal(t, "alice01", usr.Username)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles, "signup must not grant roles")
	assert.True(t, usr.IsActive)

	ws, err := env.wsRepo.GetPersonalWorkspace(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, ws.OwnerID)

	t.Run("duplicate", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		}, rec)
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog01", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	ghost := user.User{ID: "ghost", Username: "ghost", Roles: []string{user.RoleStudent}}

	env.run(t, []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "me", path: "/v1/users/me", token: env.token(t, alice), wantCode: http.StatusOK, wantData: marchallObj(t, alice)},
		{
			name: "deactivated", path: "/v1/users/me", token: env.token(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "deleted", path: "/v1/users/me", token: env.token(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")

	env.run(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", env.token(t, alice))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	env.run(t, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: env.token(t, alice),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/users", token: env.token(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, alice, admin)},
		{name: "search", path: "/v1/users?search=ALI", token: env.token(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, alice)},
	})
}

func Test_userApi_destroy(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	task := env.createTask(t, alice, "Task")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	require.NoError(t, env.sessions.Store(alice).Add(task.ID, pending.Fields{Completed: boolPtr(true)}))

	env.run(t, []httpTest{
		{
			name: "Admin required", method: http.MethodDelete, path: "/v1/users/" + alice.ID, token: env.token(t, alice),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: env.token(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + alice.ID, token: env.token(t, admin), wantCode: http.StatusNoContent},
	})

	_, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: alice.ID})
	assert.Equal(t, user.ErrNotFound, err)
	_, ok := env.sessions.Peek(alice)
	assert.False(t, ok, "pending changes of deleted users are dropped")
}

func Test_userApi_destroyMultiple(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	alice := env.createStudent(t, "Alice", "alice1")
	bob := env.createStudent(t, "Bob", "bobby1")
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, env.usrRepo, "Owner", "owner1", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	adminToken := env.token(t, admin)

	env.run(t, []httpTest{
		{
			name: "Admin required", method: http.MethodDelete, path: "/v1/users?id=" + bob.ID, token: env.token(t, alice),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/v1/users?id=" + alice.ID + "&id=" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "cannot delete a higher role", method: http.MethodDelete, path: "/v1/users?id=" + alice.ID + "&id=" + owner.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	// refused batches delete nobody
	for _, usr := range []user.User{alice, owner} {
		_, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		assert.NoError(t, err)
	}

	env.run(t, []httpTest{
		{name: "no ids", method: http.MethodDelete, path: "/v1/users", token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "delete", method: http.MethodDelete, path: "/v1/users?id=" + alice.ID + "&id=" + bob.ID + "&id=unknown",
			token: adminToken, wantCode: http.StatusNoContent,
		},
	})
	for _, usr := range []user.User{alice, bob} {
		_, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		assert.Equal(t, user.ErrNotFound, err)
	}

	// the owner outranks admins
	env.run(t, []httpTest{
		{name: "owner deletes admin", method: http.MethodDelete, path: "/v1/users?id=" + admin.ID, token: env.token(t, owner), wantCode: http.StatusNoContent},
	})
}

func Test_userApi_resetPassword(t *testing.T) {
	env := setup(t)

	env.createStudent(t, "Alice", "alice1")
	success := marchallObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	env.run(t, []httpTest{
		{name: "invalid email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "lol"}`), wantCode: http.StatusBadRequest},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/users/password-reset",
			body: []byte(`{"email": "bob@test.cd"}`), wantCode: http.StatusOK, wantData: success,
		},
	})
	assert.Empty(t, env.mailSvc.SentMessages())

	env.run(t, []httpTest{
		{
			name: "invalid token", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "n3w!pwd", PasswordConfirm: "n3w!pwd"}),
			wantCode: http.StatusBadRequest,
		},
	})
}
