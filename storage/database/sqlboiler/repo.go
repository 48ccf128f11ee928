// Package boiledrepos implements the repositories on postgres. Reads are bound with sqlboiler,
// IN clauses and batch inserts are expanded with sqlx.
package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/alama/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// bind runs query (with `?` placeholders, slices expanded for IN clauses) and binds the rows into obj.
func (repo repository) bind(ctx context.Context, exec core.DBExecutor, obj interface{}, query string, args ...interface{}) error {
	q, qArgs, err := expand(query, args...)
	if err != nil {
		return err
	}
	return queries.Raw(q, qArgs...).Bind(ctx, exec, obj)
}

// execute runs a statement (with `?` placeholders, slices expanded for IN clauses).
func (repo repository) execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	q, qArgs, err := expand(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, q, qArgs...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

// executeNamed runs a named statement. A slice arg expands the VALUES clause into a batch insert.
func (repo repository) executeNamed(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (int, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return 0, errors.Wrap(err, "binding named query")
	}
	res, err := exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

// bindNamed runs a named query. A slice arg expands the VALUES clause into a batch insert.
func (repo repository) bindNamed(ctx context.Context, exec core.DBExecutor, obj interface{}, query string, arg interface{}) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return errors.Wrap(err, "binding named query")
	}
	return queries.Raw(sqlx.Rebind(sqlx.DOLLAR, q), args...).Bind(ctx, exec, obj)
}

func expand(query string, args ...interface{}) (string, []interface{}, error) {
	q, qArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), qArgs, nil
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
