package engine

import (
	"context"
	"time"

	"github.com/docuglot/chapter-translator/internal/session"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranslatedChapter is one finished chapter as exposed to pollers.
type TranslatedChapter struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Job is one asynchronous translation run over a session's chapters.
// Translated grows as chapters finish, so pollers see partial results
// mid-flight.
type Job struct {
	ID             string              `json:"id"`
	SessionID      string              `json:"session_id"`
	TargetLanguage string              `json:"target_language"`
	Status         Status              `json:"status"`
	Chapters       []session.Chapter   `json:"chapters"`
	Translated     []TranslatedChapter `json:"translated_chapters"`
	Completed      int                 `json:"completed"`
	Total          int                 `json:"total"`
	Error          string              `json:"error,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Translator translates one chapter's content into the target language.
type Translator interface {
	Translate(ctx context.Context, content, targetLanguage string) (string, error)
}

// Store persists job states for restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*Job, error)
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, jobID string) error
}
