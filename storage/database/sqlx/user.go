package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
)

var (
	userColumns = []string{
		"id", "name", "username", "email", "is_active", "roles",
		"password_hash", "created_at", "updated_at", "last_login",
	}

	userOrderingFields = map[string]bool{
		"name": true, "username": true, "email": true, "created_at": true, "last_login": true,
	}
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DBExecutor) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	taken := sq.Or{}
	if username != "" {
		taken = append(taken, sq.Eq{"username": username})
	}
	if email != "" {
		taken = append(taken, sq.Eq{"email": email})
	}
	if len(taken) == 0 {
		return nil
	}

	where := sq.And{taken}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		where = append(where, sq.NotEq{"id": ids})
	}

	q, args, err := psql.Select("username", "email").From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		if isNoRows(err) {
			return nil
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = newID()
	}
	row := newUserRow(usr)
	q, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles,
			row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, q, args...); err != nil {
		return user.User{}, uniquenessError(err, "inserting user")
	}
	return row.toUser(), nil
}

func uniquenessError(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		if strings.Contains(constraint, "username") {
			return user.ErrUsernameExists
		}
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	query := psql.Select(userColumns...).From("users")

	if filter != nil && !filter.IsEmpty() {
		where := sq.And{}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			where = append(where, sq.Or{
				sq.ILike{"name": pattern},
				sq.ILike{"username": pattern},
				sq.ILike{"email": pattern},
			})
		}
		if len(filter.Roles) > 0 {
			// roles are prefixes: "admin:" matches "admin:owner"
			roles := sq.Or{}
			for _, role := range filter.Roles {
				roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE ?)", role+"%"))
			}
			where = append(where, roles)
		}
		if filter.IsActive != nil {
			where = append(where, sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, sq.GtOrEq{"created_at": filter.CreatedFrom})
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, sq.LtOrEq{"created_at": filter.CreatedTo})
		}
		query = query.Where(where)
	}

	orderBy := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if userOrderingFields[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, core.DBOrdering{Field: "created_at"}.String())
	}

	q, args, err := query.OrderBy(orderBy...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where sq.Sqlizer
	switch {
	case filter.ID != "":
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case len(filter.UsernameOrEmail) > 0:
		uname := filter.UsernameOrEmail[0]
		email := uname
		if len(filter.UsernameOrEmail) > 1 {
			email = filter.UsernameOrEmail[1]
		}
		where = sq.Or{sq.Eq{"username": uname}, sq.Eq{"email": email}}
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args, err := psql.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		if isNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	q, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"username":      row.Username,
			"email":         row.Email,
			"is_active":     row.IsActive,
			"roles":         row.Roles,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, uniquenessError(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID != "" {
		updated, err := repo.UpdateUser(ctx, usr)
		if errors.Cause(err) != user.ErrNotFound {
			return updated, err
		}
	}
	return repo.CreateUser(ctx, usr)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := psql.Delete("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(n), nil
}
