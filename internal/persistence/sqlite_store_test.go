package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/chapter-translator/internal/engine"
	"github.com/docuglot/chapter-translator/internal/session"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	require.Error(t, err)
}

func TestSQLiteStore_JobRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	job := &engine.Job{
		ID:             "job-1",
		SessionID:      "s1",
		TargetLanguage: "fr",
		Status:         engine.StatusInProgress,
		Chapters: []session.Chapter{
			{ID: "c1", Title: "One", Content: "Hello"},
			{ID: "c2", Title: "Two", Content: "World"},
		},
		Translated: []engine.TranslatedChapter{{ID: "c1", Content: "Bonjour"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, engine.StatusInProgress, got.Status)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Completed)
	require.Len(t, got.Translated, 1)
	assert.Equal(t, "Bonjour", got.Translated[0].Content)

	// Upsert with the same id replaces the row.
	job.Status = engine.StatusCompleted
	job.Translated = append(job.Translated, engine.TranslatedChapter{ID: "c2", Content: "Monde"})
	require.NoError(t, store.UpsertJob(ctx, job))

	loaded, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, engine.StatusCompleted, loaded[0].Status)
	assert.Equal(t, 2, loaded[0].Completed)
}

func TestSQLiteStore_DeleteJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &engine.Job{
		ID:             "job-1",
		SessionID:      "s1",
		TargetLanguage: "fr",
		Status:         engine.StatusQueued,
		Chapters:       []session.Chapter{{ID: "c1", Content: "Hello"}},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.UpsertJob(ctx, job))
	require.NoError(t, store.DeleteJob(ctx, "job-1"))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	snap := session.Snapshot{
		SessionID: "s1",
		Chapters:  []session.Chapter{{ID: "c1", Title: "One", Content: "Hello"}},
		TranslatedChapters: []session.TranslatedChapter{
			{ID: "c1", Content: "Bonjour", Origin: session.OriginServer, Revision: 1},
		},
		SelectedLanguage: "fr",
		Timestamp:        time.Now().Unix(),
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	loaded, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "s1", loaded.SessionID)
	assert.Equal(t, "fr", loaded.SelectedLanguage)
	require.Len(t, loaded.TranslatedChapters, 1)
	assert.Equal(t, uint64(1), loaded.TranslatedChapters[0].Revision)

	// A second save replaces the single record.
	snap.SelectedLanguage = "de"
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	loaded, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "de", loaded.SelectedLanguage)
}

func TestSQLiteStore_MalformedSnapshotLoadsAsMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (name, payload, saved_at) VALUES (?, ?, ?)`,
		snapshotName, "{not json", time.Now())
	require.NoError(t, err)

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSQLiteStore_DeleteSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := session.Snapshot{
		SessionID: "s1",
		Chapters:  []session.Chapter{{ID: "c1", Content: "Hello"}},
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	require.NoError(t, store.DeleteSnapshot(ctx))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
