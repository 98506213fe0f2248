package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tracker/internal/gateway"

	_ "modernc.org/sqlite"
)

// Store persists records in a local SQLite file. Columns are nullable so a
// record with a missing field survives a round trip and is skipped on reload.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Dispatcher lanes write concurrently; SQLite allows one writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) FetchAll(ctx context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	cols := gateway.FieldsOf(kind)
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", strings.Join(cols, ", "), kind)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []gateway.Record
	for rows.Next() {
		var id string
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, 0, len(cols)+1)
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		r := gateway.Record{Kind: kind, ID: id, Fields: make(map[string]string, len(cols))}
		for i, c := range cols {
			if vals[i].Valid {
				r.Fields[c] = vals[i].String
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
	cols := gateway.FieldsOf(r.Kind)
	args := make([]any, 0, len(cols)+1)
	args = append(args, r.ID)
	updates := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		if v, ok := r.Fields[c]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	updates = append(updates, "updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf(
		"INSERT INTO %s (id, %s) VALUES (?%s) ON CONFLICT(id) DO UPDATE SET %s",
		r.Kind,
		strings.Join(cols, ", "),
		strings.Repeat(", ?", len(cols)),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", r.Kind, r.ID, err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite", "kind", r.Kind, "id", r.ID)
	return nil
}

func (s *Store) Delete(ctx context.Context, kind gateway.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", kind)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
