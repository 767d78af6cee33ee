package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "warden/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultKeep = 1000

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	st := &sqliteStore{db: db, log: log, keep: keep, pruneEvery: 500}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendRun(ctx context.Context, e RunEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.Started.IsZero() {
		e.Started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(job, started, duration_ms, outcome, err) VALUES(?,?,?,?,?)`,
		e.Job, e.Started.Format(time.RFC3339Nano), e.Duration.Milliseconds(), e.Outcome, nullStr(e.Error),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.prune(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentRuns(ctx context.Context, job string, limit int) ([]RunEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT job, started, duration_ms, outcome, COALESCE(err,'') FROM runs`
	args := []any{}
	if job != "" {
		q += ` WHERE job = ?`
		args = append(args, job)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var started string
		var durMS int64
		if err := rows.Scan(&e.Job, &started, &durMS, &e.Outcome, &e.Error); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, started); perr == nil {
			e.Started = t
		}
		e.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id <= (SELECT COALESCE(MAX(id),0) FROM runs) - ?`, s.keep)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
