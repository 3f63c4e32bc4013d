package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docuglot/chapter-translator/internal/engine"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

// snapshotName is the single named record holding the saved session.
const snapshotName = "current"

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*engine.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, target_language, status, chapters, translated, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*engine.Job, 0)
	for rows.Next() {
		var (
			item           engine.Job
			status         string
			chaptersJSON   string
			translatedJSON string
		)
		if err := rows.Scan(
			&item.ID,
			&item.SessionID,
			&item.TargetLanguage,
			&status,
			&chaptersJSON,
			&translatedJSON,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chaptersJSON), &item.Chapters); err != nil {
			log.Warn("Skipping job %s with malformed chapters payload: %v", item.ID, err)
			continue
		}
		if err := json.Unmarshal([]byte(translatedJSON), &item.Translated); err != nil {
			log.Warn("Skipping job %s with malformed results payload: %v", item.ID, err)
			continue
		}
		item.Status = engine.Status(status)
		item.Total = len(item.Chapters)
		item.Completed = len(item.Translated)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *engine.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	chaptersJSON, err := json.Marshal(job.Chapters)
	if err != nil {
		return fmt.Errorf("marshal chapters: %w", err)
	}
	translatedJSON, err := json.Marshal(job.Translated)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, session_id, target_language, status, chapters, translated, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id=excluded.session_id,
			target_language=excluded.target_language,
			status=excluded.status,
			chapters=excluded.chapters,
			translated=excluded.translated,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.SessionID,
		job.TargetLanguage,
		string(job.Status),
		string(chaptersJSON),
		string(translatedJSON),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// SaveSnapshot stores the session snapshot under the single named record,
// replacing any previous save.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO session_snapshots (name, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at`,
		snapshotName,
		string(payload),
		time.Now(),
	)
	return err
}

// LoadSnapshot returns the saved session snapshot, or nil when there is
// none. A malformed record also loads as "no saved session" rather than an
// error.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*session.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM session_snapshots WHERE name = ?`, snapshotName).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap session.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		log.Warn("Saved session record is malformed, treating as no saved session: %v", err)
		return nil, nil
	}
	if snap.SessionID == "" || len(snap.Chapters) == 0 {
		return nil, nil
	}
	return &snap, nil
}

// DeleteSnapshot removes the saved session record.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_snapshots WHERE name = ?`, snapshotName)
	return err
}
