package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns)
}

func TestUserRepository_GetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 LIMIT 1`).
		WithArgs("u1").
		WillReturnRows(userRows().AddRow("u1", "Jane", "jane", nil, true, "{student:}", []byte("hash"), now, now, nil))

	usr, err := repo.GetUser(ctx, user.GetFilter{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "jane", usr.Username)
	assert.Equal(t, "", usr.Email)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.LastLogin.IsZero())

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE \(username = \$1 OR email = \$2\) LIMIT 1`).
		WithArgs("ghost", "ghost").
		WillReturnRows(userRows())

	_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"ghost"}})
	assert.Equal(t, user.ErrNotFound, err)

	_, err = repo.GetUser(ctx, user.GetFilter{})
	assert.Equal(t, user.ErrNotFound, err)

	// ids are UUIDs; postgres rejects anything else
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 LIMIT 1`).
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: invalidTextRepresentation})
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "abc"})
	assert.Equal(t, user.ErrNotFound, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	usr := user.User{Name: "Jane", Username: "jane", IsActive: true, Roles: []string{user.RoleStudent}}

	mock.ExpectExec(`INSERT INTO users \(id,name,username,email,is_active,roles,password_hash,created_at,updated_at,last_login\)`).
		WithArgs(sqlmock.AnyArg(), "Jane", "jane", nil, true, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.CreateUser(ctx, usr)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	tests := []struct {
		constraint string
		wantErr    error
	}{
		{"users_username_key", user.ErrUsernameExists},
		{"users_email_key", user.ErrEmailExists},
	}
	for _, tc := range tests {
		t.Run(tc.constraint, func(t *testing.T) {
			mock.ExpectExec(`INSERT INTO users`).
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tc.constraint})
			_, err := repo.CreateUser(ctx, usr)
			assert.Equal(t, tc.wantErr, err)
		})
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CheckUsernameUniqueness(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", ""))

	mock.ExpectQuery(`SELECT username, email FROM users WHERE \(\(username = \$1 OR email = \$2\) AND id NOT IN \(\$3\)\) LIMIT 1`).
		WithArgs("jane", "jane@mail.com", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}).AddRow("other", "jane@mail.com"))

	err := repo.CheckUsernameUniqueness(ctx, "jane", "jane@mail.com", user.User{ID: "u1"})
	assert.Equal(t, user.ErrEmailExists, err)

	mock.ExpectQuery(`SELECT username, email FROM users WHERE \(\(username = \$1\)\) LIMIT 1`).
		WithArgs("jane").
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}).AddRow("jane", nil))

	err = repo.CheckUsernameUniqueness(ctx, "jane", "")
	assert.Equal(t, user.ErrUsernameExists, err)

	mock.ExpectQuery(`SELECT username, email FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email"}))

	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "free", "free@mail.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	active := true

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE (.+)name ILIKE \$1 OR username ILIKE \$2 OR email ILIKE \$3(.+)`+
		`EXISTS \(SELECT 1 FROM unnest\(roles\) r WHERE r LIKE \$4\)(.+)is_active = \$5(.+) ORDER BY name ASC, created_at DESC`).
		WithArgs("%jo%", "%jo%", "%jo%", "admin:%", true).
		WillReturnRows(userRows().
			AddRow("u1", "Joe", "joe123", "joe@mail.com", true, "{admin:owner}", []byte("h"), now, now, now).
			AddRow("u2", "Jon", nil, "jon@mail.com", true, "{admin:}", []byte("h"), now, now, nil))

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "jo", Roles: []string{user.RoleAdmin}, IsActive: &active}, []core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash"}, // not orderable
		{Field: "created_at"},
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "joe123", users[0].Username)
	assert.Equal(t, now, users[0].LastLogin)
	assert.Equal(t, "", users[1].Username)

	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY created_at DESC`).
		WillReturnRows(userRows())

	users, err = repo.QueryUsers(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	usr := user.User{ID: "u1", Name: "Jane", Email: "jane@mail.com", Roles: []string{user.RoleStudent}}

	mock.ExpectExec(`UPDATE users SET (.+) WHERE id = \$9`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := repo.UpdateUser(ctx, usr)
	assert.NoError(t, err)

	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.UpdateUser(ctx, usr)
	assert.Equal(t, user.ErrNotFound, err)

	// UpdateOrCreateUser falls back to an insert when nothing was updated
	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.UpdateOrCreateUser(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, "u1", created.ID)

	id1, id2 := "6f1c2a52-5b8e-4d43-9f3a-0d8c1e7a2b41", "b2e4d9f0-1a6c-4e7b-8c3d-5f9a0e2d4c16"
	mock.ExpectExec(`DELETE FROM users WHERE id IN \(\$1,\$2\)`).
		WithArgs(id1, id2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteUsersByID(ctx, id1, "abc", id2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// nothing to delete when no id is a UUID
	n, err = repo.DeleteUsersByID(ctx, "abc")
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteUsersByID(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
