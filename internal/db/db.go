package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// New returns queries that run unprepared against db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Prepare returns queries with every statement prepared up front.
func Prepare(ctx context.Context, db DBTX) (*Queries, error) {
	q := Queries{db: db, stmts: make(map[string]*sql.Stmt, len(allQueries))}
	for _, query := range allQueries {
		stmt, err := db.PrepareContext(ctx, query.sql)
		if err != nil {
			q.Close()
			return nil, fmt.Errorf("error preparing query %s: %w", query.name, err)
		}
		q.stmts[query.sql] = stmt
	}
	return &q, nil
}

// Queries runs the store's SQL against a connection or transaction.
type Queries struct {
	db    DBTX
	tx    *sql.Tx
	stmts map[string]*sql.Stmt
}

// Close releases prepared statements.
func (q *Queries) Close() error {
	var errs []error
	for _, stmt := range q.stmts {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithTx returns queries bound to tx, reusing prepared statements.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, tx: tx, stmts: q.stmts}
}

func (q *Queries) stmt(ctx context.Context, query string) *sql.Stmt {
	stmt, ok := q.stmts[query]
	if !ok {
		return nil
	}
	if q.tx != nil {
		return q.tx.StmtContext(ctx, stmt)
	}
	return stmt
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if stmt := q.stmt(ctx, query); stmt != nil {
		return stmt.ExecContext(ctx, args...)
	}
	return q.db.ExecContext(ctx, query, args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if stmt := q.stmt(ctx, query); stmt != nil {
		return stmt.QueryContext(ctx, args...)
	}
	return q.db.QueryContext(ctx, query, args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if stmt := q.stmt(ctx, query); stmt != nil {
		return stmt.QueryRowContext(ctx, args...)
	}
	return q.db.QueryRowContext(ctx, query, args...)
}
