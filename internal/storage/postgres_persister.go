package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/share-commute/internal/models"
)

// execer is the part of *sql.DB that writes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanner is satisfied by *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

type PostgresPersister struct {
	db       *sql.DB
	exec     execer
	queryRow func(ctx context.Context, query string, args ...any) scanner
}

func NewPostgresPersister(ctx context.Context, dsn string) (*PostgresPersister, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresPersister{
		db:   db,
		exec: db,
		queryRow: func(ctx context.Context, query string, args ...any) scanner {
			return db.QueryRowContext(ctx, query, args...)
		},
	}, nil
}

// Migrate applies every .sql file in dir in lexical order.
func (p *PostgresPersister) Migrate(ctx context.Context, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	applied := make([]string, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return applied, err
		}
		if _, err := p.exec.ExecContext(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("migration %s: %w", filepath.Base(f), err)
		}
		applied = append(applied, filepath.Base(f))
	}
	return applied, nil
}

func (p *PostgresPersister) Load(ctx context.Context, sessionID string) (models.Snapshot, bool, error) {
	var raw []byte
	err := p.queryRow(ctx, `SELECT snapshot FROM session_snapshots WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return snap, true, nil
}

func (p *PostgresPersister) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.exec.ExecContext(ctx, `INSERT INTO session_snapshots(session_id, snapshot, updated_at) VALUES($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`,
		sessionID, string(b), time.Now().UTC())
	return err
}

func (p *PostgresPersister) Delete(ctx context.Context, sessionID string) error {
	_, err := p.exec.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	return err
}

func (p *PostgresPersister) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
