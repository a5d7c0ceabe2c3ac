package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const countersTable = "counters"

// CounterRepository stores named monotonic counters such as the session sequence
type CounterRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewCounterRepository creates a new repository instance
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db, sb: statementBuilder(db)}
}

// Get returns the counter value, or 0 if it was never incremented
func (r *CounterRepository) Get(ctx context.Context, name string) (int64, error) {
	return r.get(ctx, r.db, name)
}

// Increment adds one to the counter and returns the new value
func (r *CounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Insert(countersTable).
		Columns("name", "value").
		Values(name, 1).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = " + countersTable + ".value + 1").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	value, err := r.get(ctx, tx, name)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit counter %s: %w", name, err)
	}
	return value, nil
}

func (r *CounterRepository) get(ctx context.Context, q sqlx.QueryerContext, name string) (int64, error) {
	query, args, err := r.sb.Select("value").From(countersTable).Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var value int64
	if err := sqlx.GetContext(ctx, q, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter %s: %w", name, err)
	}
	return value, nil
}
