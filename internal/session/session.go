package session

import (
	"sync"
	"time"

	"github.com/docuglot/chapter-translator/internal/apperr"
)

// Chapter is an immutable unit of original-language content. Chapters are
// produced once by the upload adapter and never change afterwards.
type Chapter struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

type Origin string

const (
	OriginServer    Origin = "server"
	OriginLocalEdit Origin = "local-edit"
)

// TranslatedChapter holds the current translation for one chapter together
// with the revision counter that orders conflicting writes.
type TranslatedChapter struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Origin   Origin `json:"origin"`
	Revision uint64 `json:"revision"`
}

type JobStatus string

const (
	StatusIdle       JobStatus = "idle"
	StatusQueued     JobStatus = "queued"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status is finished.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// allowedTransitions encodes the monotonic lifecycle: idle -> queued ->
// in_progress -> {completed, failed}. A terminal status may only move back to
// queued, which is how starting a new job resets the session.
var allowedTransitions = map[JobStatus][]JobStatus{
	StatusIdle:       {StatusQueued},
	StatusQueued:     {StatusInProgress, StatusCompleted, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusQueued},
	StatusFailed:     {StatusQueued},
}

// Store holds one document session: the ordered original chapters, the
// translated chapters keyed by chapter id, and the job status. All mutations
// go through one mutex so the revision ordering stays consistent no matter
// how poll ingestion and user edits interleave.
type Store struct {
	mu sync.RWMutex

	sessionID string
	language  string
	chapters  []Chapter
	index     map[string]int

	translated map[string]TranslatedChapter
	finalized  map[string]bool
	jobStatus  JobStatus
}

// New creates a session store seeded with the upload adapter's chapters.
func New(sessionID string, chapters []Chapter, language string) (*Store, error) {
	if sessionID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "session id is empty")
	}
	if len(chapters) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "session has no chapters")
	}

	index := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		if ch.ID == "" {
			return nil, apperr.Newf(apperr.KindInvalidInput, "chapter %d has an empty id", i)
		}
		if _, ok := index[ch.ID]; ok {
			return nil, apperr.Newf(apperr.KindInvalidInput, "duplicate chapter id %q", ch.ID)
		}
		index[ch.ID] = i
	}

	return &Store{
		sessionID:  sessionID,
		language:   language,
		chapters:   append([]Chapter(nil), chapters...),
		index:      index,
		translated: make(map[string]TranslatedChapter),
		finalized:  make(map[string]bool),
		jobStatus:  StatusIdle,
	}, nil
}

func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) Language() string {
	return s.language
}

// Chapters returns the original chapters in document order.
func (s *Store) Chapters() []Chapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Chapter(nil), s.chapters...)
}

// Translated returns a snapshot of the translated chapters keyed by id.
func (s *Store) Translated() map[string]TranslatedChapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make(map[string]TranslatedChapter, len(s.translated))
	for id, tc := range s.translated {
		ret[id] = tc
	}
	return ret
}

func (s *Store) TranslatedFor(chapterID string) (TranslatedChapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc, ok := s.translated[chapterID]
	return tc, ok
}

// TotalCharCount sums the original chapter content lengths. Used for
// progress estimation.
func (s *Store) TotalCharCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, ch := range s.chapters {
		total += len([]rune(ch.Content))
	}
	return total
}

func (s *Store) JobStatus() JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobStatus
}

// SetJobStatus moves the job status along the monotonic lifecycle. Setting
// the current status again is a no-op; any other move outside the lifecycle
// fails with InvalidTransition.
func (s *Store) SetJobStatus(next JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next == s.jobStatus {
		return nil
	}
	for _, allowed := range allowedTransitions[s.jobStatus] {
		if next == allowed {
			if next == StatusQueued {
				// New job instance: completion markers belong to the
				// previous job.
				s.finalized = make(map[string]bool)
			}
			s.jobStatus = next
			return nil
		}
	}
	return apperr.Newf(apperr.KindInvalidTransition,
		"job status cannot move from %s to %s", s.jobStatus, next)
}

// BeginJob resets the session for a new job instance: status moves to
// queued and the previous job's completion markers are cleared. The caller
// owns the one-job-at-a-time guarantee; the store only marks the new
// lifetime, within which SetJobStatus stays monotonic.
func (s *Store) BeginJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = make(map[string]bool)
	s.jobStatus = StatusQueued
}

// Finalize marks a chapter as finished by the translation job. Edits to a
// finalized chapter can no longer be overwritten by that job.
func (s *Store) Finalize(chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[chapterID]; !ok {
		return apperr.Newf(apperr.KindUnknownChapter, "chapter %q is not part of this session", chapterID)
	}
	s.finalized[chapterID] = true
	return nil
}

func (s *Store) Finalized(chapterID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized[chapterID]
}

// Snapshot is the persisted copy of a session: an opaque value, not a live
// reference.
type Snapshot struct {
	SessionID          string              `json:"session_id"`
	Chapters           []Chapter           `json:"chapters"`
	TranslatedChapters []TranslatedChapter `json:"translated_chapters"`
	SelectedLanguage   string              `json:"selected_language"`
	Timestamp          int64               `json:"timestamp"`
}

// Snapshot copies the current session state, with translated chapters in
// document order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	translated := make([]TranslatedChapter, 0, len(s.translated))
	for _, ch := range s.chapters {
		if tc, ok := s.translated[ch.ID]; ok {
			translated = append(translated, tc)
		}
	}

	return Snapshot{
		SessionID:          s.sessionID,
		Chapters:           append([]Chapter(nil), s.chapters...),
		TranslatedChapters: translated,
		SelectedLanguage:   s.language,
		Timestamp:          time.Now().Unix(),
	}
}

// FromSnapshot rebuilds a session store from a persisted snapshot. The
// restored session starts idle; a fresh job has to be requested explicitly.
func FromSnapshot(snap Snapshot) (*Store, error) {
	store, err := New(snap.SessionID, snap.Chapters, snap.SelectedLanguage)
	if err != nil {
		return nil, err
	}
	for _, tc := range snap.TranslatedChapters {
		if _, err := store.Apply(Write{
			ChapterID: tc.ID,
			Content:   tc.Content,
			Origin:    tc.Origin,
			Revision:  tc.Revision,
		}); err != nil {
			return nil, apperr.Newf(apperr.KindInvalidInput,
				"snapshot references unknown chapter %q", tc.ID)
		}
	}
	return store, nil
}
