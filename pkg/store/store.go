// Package store persists the operation audit trail: one row per Manager
// operation (load, sort, save, validate, profile activation) with a
// timestamp and a short summary. The JSON documents under the config
// directory remain the source of truth for all domain state; this log is
// additive, for the debug surface and the CLI's history view.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"xaddonmgr/pkg/db"
)

// Operation is one recorded manager operation.
type Operation struct {
	ID        string
	Op        string
	Summary   string
	CreatedAt time.Time
}

// AuditStore is the repository interface the Manager and the API consume.
type AuditStore interface {
	Record(ctx context.Context, op, summary string) error
	Recent(ctx context.Context, limit int) ([]Operation, error)
	Close() error
}

// SQLiteStore implements AuditStore.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts one audit row.
func (s *SQLiteStore) Record(ctx context.Context, op, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (id, op, summary) VALUES (?, ?, ?)`,
		uuid.NewString(), op, summary)
	return err
}

// Recent returns the newest limit operations, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, summary, created_at FROM operations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var o Operation
		if err := rows.Scan(&o.ID, &o.Op, &o.Summary, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
