// Package sqlxrepos implements the Postgres repositories with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// repository holds the default executor of a repository.
// Services pass a transaction as the trailing exec argument to override it.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// inTx reports whether the caller passed its own executor.
func inTx(svcExec []core.DBExecutor) bool {
	return len(svcExec) > 0 && svcExec[0] != nil
}

// isUUID filters IDs Postgres would reject as malformed uuid input.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// selectAll runs query and scans every row into dest, a pointer to a slice of structs with db tags.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(rows, dest)
}

// namedExec binds arg (a struct with db tags) into a :named query.
func namedExec(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "binding named query")
	}
	return exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
}

// exists runs a SELECT EXISTS(...) query.
func exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var ok bool
	if err := exec.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// where accumulates AND-ed conditions with ? bindvars, rebound to $n by query.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds `col IN (?)` for values, which must not be empty.
func (w *where) in(col string, values interface{}) error {
	cond, args, err := sqlx.In(col+" IN (?)", values)
	if err != nil {
		return errors.Wrap(err, "expanding IN clause")
	}
	w.add(cond, args...)
	return nil
}

// query returns base with the conditions and suffix appended, using Postgres bindvars.
func (w *where) query(base, suffix string) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(base)
	if len(w.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(w.conds, " AND "))
	}
	if suffix != "" {
		b.WriteString(" ")
		b.WriteString(suffix)
	}
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), w.args
}

// orderBy renders ordering, keeping only columns in allowed. fallback is used when nothing is left.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return "ORDER BY " + fallback
	}
	return "ORDER BY " + strings.Join(parts, ", ") + ", id"
}

func limit(n int) string {
	return "LIMIT " + strconv.Itoa(n)
}
