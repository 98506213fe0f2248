// Package postgres stores ledger records in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tracker/internal/gateway"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id         TEXT PRIMARY KEY,
    "name"     TEXT,
    "amount"   TEXT,
    "incomes"  TEXT,
    "expenses" TEXT,
    "color"    TEXT,
    "symbol"   TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS transactions (
    id         TEXT PRIMARY KEY,
    "name"     TEXT,
    "amount"   TEXT,
    "date"     TEXT,
    "category" TEXT,
    "type"     TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions("category");
`

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to url and ensures the schema exists.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller owns its lifetime unless Close is called.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) FetchAll(ctx context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	cols := gateway.FieldsOf(kind)
	rows, err := s.pool.Query(ctx, selectQuery(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []gateway.Record
	for rows.Next() {
		var id string
		vals := make([]*string, len(cols))
		dest := []any{&id}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		r := gateway.Record{Kind: kind, ID: id, Fields: make(map[string]string, len(cols))}
		for i, c := range cols {
			if vals[i] != nil {
				r.Fields[c] = *vals[i]
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, r gateway.Record) error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertQuery(r.Kind), upsertArgs(r)...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", r.Kind, r.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind gateway.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", kind), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func quoted(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = `"` + c + `"`
	}
	return out
}

func selectQuery(kind gateway.Kind) string {
	return fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", strings.Join(quoted(gateway.FieldsOf(kind)), ", "), kind)
}

func upsertQuery(kind gateway.Kind) string {
	cols := quoted(gateway.FieldsOf(kind))
	placeholders := make([]string, len(cols)+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	updates = append(updates, "updated_at = now()")
	return fmt.Sprintf("INSERT INTO %s (id, %s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		kind, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
}

// upsertArgs returns id followed by one value per column; absent fields are NULL.
func upsertArgs(r gateway.Record) []any {
	cols := gateway.FieldsOf(r.Kind)
	args := make([]any, 0, len(cols)+1)
	args = append(args, r.ID)
	for _, c := range cols {
		if v, ok := r.Fields[c]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return args
}
