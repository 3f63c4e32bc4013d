package controller

import (
	"context"
	"sync"

	"github.com/docuglot/chapter-translator/internal/session"
)

// Remote job statuses as reported by the poll endpoint.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type StartRequest struct {
	SessionID      string `json:"session_id"`
	TargetLanguage string `json:"target_language"`
}

type StartResponse struct {
	JobID string `json:"job_id"`
}

// TranslatedChapter is one finished chapter in a poll response.
type TranslatedChapter struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type PollResponse struct {
	Status             string              `json:"status"`
	TranslatedChapters []TranslatedChapter `json:"translated_chapters"`
	Completed          int                 `json:"completed"`
	Total              int                 `json:"total"`
}

// Client is the transport seam the controller drives. Implementations talk
// to whatever hosts the translation engine.
type Client interface {
	StartJob(ctx context.Context, req StartRequest) (StartResponse, error)
	PollJob(ctx context.Context, jobID string) (PollResponse, error)
}

// Event is one progress report from the poll loop. Ingested lists the
// chapter ids accepted by the merge policy on this tick. Err is set only
// alongside a failed status.
type Event struct {
	Status    session.JobStatus
	Ingested  []string
	Completed int
	Total     int
	Err       error
}

// Subscription is a cancellable view of one job's progress. Cancel stops
// future polling; it neither rolls back ingested results nor cancels the
// job on the remote side.
type Subscription struct {
	JobID string

	events   chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSubscription(jobID string) *Subscription {
	return &Subscription{
		JobID:  jobID,
		events: make(chan Event),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Events delivers progress reports until the loop finishes, then closes.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done closes once the poll loop has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Cancel() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Subscription) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

func (s *Subscription) finish() {
	close(s.events)
	close(s.done)
}
