// Package sqlxrepos implements the repositories on Postgres with sqlx & squirrel.
package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02" // e.g. a malformed UUID
)

// psql builds postgres flavoured ($n placeholders) statements.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func newID() string {
	return uuid.New().String()
}

// uniqueConstraint returns the violated unique constraint name, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// isNotFound reports whether no row can match: none was found, or a key is not a valid UUID.
func isNotFound(err error) bool {
	if isNoRows(err) {
		return true
	}
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == invalidTextRepresentation
}

// validIDs drops the ids that cannot be UUID keys.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
