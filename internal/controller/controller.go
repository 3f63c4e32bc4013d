package controller

import (
	"context"
	"sync"
	"time"

	"github.com/docuglot/chapter-translator/internal/apperr"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

// DefaultPollInterval is the fixed polling cadence. There is no backoff and
// no maximum poll count; polling runs until a terminal status or cancellation.
const DefaultPollInterval = 2 * time.Second

// Controller owns the lifecycle of one translation job at a time: it starts
// the remote job, polls on a fixed cadence, ingests partial results into the
// session store through the merge policy, and stops on a terminal status.
type Controller struct {
	client   Client
	interval time.Duration

	mu     sync.Mutex
	active *Subscription
}

type Option func(*Controller)

func WithPollInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func New(client Client, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Running reports whether a poll loop is currently active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start begins a translation job for the session and returns a cancellable
// subscription to its progress. At most one poll loop runs per controller;
// a second Start while one is active fails with JobAlreadyRunning.
func (c *Controller) Start(ctx context.Context, store *session.Store) (*Subscription, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, apperr.New(apperr.KindJobAlreadyRunning, "a translation job is already running")
	}
	c.mu.Unlock()

	chapters := store.Chapters()
	if len(chapters) == 0 {
		return nil, apperr.New(apperr.KindJobStart, "session has no chapters to translate")
	}

	resp, err := c.client.StartJob(ctx, StartRequest{
		SessionID:      store.SessionID(),
		TargetLanguage: store.Language(),
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindJobStart, "remote job start failed")
	}
	store.BeginJob()

	sub := newSubscription(resp.JobID)

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, apperr.New(apperr.KindJobAlreadyRunning, "a translation job is already running")
	}
	c.active = sub
	c.mu.Unlock()

	go c.poll(ctx, store, sub)

	log.Info("Translation job %s started for session %s (%d chapters, %d chars)",
		resp.JobID, store.SessionID(), len(chapters), store.TotalCharCount())
	return sub, nil
}

func (c *Controller) poll(ctx context.Context, store *session.Store, sub *Subscription) {
	defer func() {
		c.mu.Lock()
		if c.active == sub {
			c.active = nil
		}
		c.mu.Unlock()
		sub.finish()
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stopCh:
			return
		case <-ticker.C:
			resp, err := c.client.PollJob(ctx, sub.JobID)
			if err != nil {
				// A transient poll error is terminal: the loop stops and
				// the job is marked failed, but everything already
				// ingested stays visible.
				pollErr := apperr.Wrap(err, apperr.KindPoll, "status poll failed").
					WithContext("job_id", sub.JobID)
				if terr := store.SetJobStatus(session.StatusFailed); terr != nil {
					log.Warn("Failed to mark job %s failed: %v", sub.JobID, terr)
				}
				sub.emit(Event{Status: session.StatusFailed, Err: pollErr})
				return
			}

			ingested := c.ingest(store, sub.JobID, resp.TranslatedChapters)
			status := c.advance(store, resp, len(ingested))

			sub.emit(Event{
				Status:    status,
				Ingested:  ingested,
				Completed: resp.Completed,
				Total:     resp.Total,
			})

			if status.Terminal() {
				log.Info("Translation job %s finished with status %s", sub.JobID, status)
				return
			}
		}
	}
}

// ingest merges every chapter in a poll response into the session store,
// regardless of job status: partial results mid-flight are valid. Each
// delivered chapter is also marked finalized, since the engine only reports
// chapters it has finished.
func (c *Controller) ingest(store *session.Store, jobID string, chapters []TranslatedChapter) []string {
	ingested := make([]string, 0, len(chapters))
	for _, tc := range chapters {
		if _, err := store.SetTranslated(tc.ID, tc.Content, session.OriginServer); err != nil {
			log.Warn("Job %s delivered unknown chapter %q, skipping", jobID, tc.ID)
			continue
		}
		if err := store.Finalize(tc.ID); err != nil {
			log.Warn("Failed to finalize chapter %q: %v", tc.ID, err)
		}
		ingested = append(ingested, tc.ID)
	}
	return ingested
}

// advance maps the remote status onto the session's monotonic lifecycle.
// The session moves to in_progress on the first poll that reports progress,
// whether through the status field or through delivered chapters.
func (c *Controller) advance(store *session.Store, resp PollResponse, ingested int) session.JobStatus {
	var next session.JobStatus
	switch resp.Status {
	case StatusCompleted:
		next = session.StatusCompleted
	case StatusFailed:
		next = session.StatusFailed
	case StatusInProgress:
		next = session.StatusInProgress
	default:
		if ingested > 0 {
			next = session.StatusInProgress
		} else {
			return store.JobStatus()
		}
	}

	if err := store.SetJobStatus(next); err != nil {
		log.Warn("Ignoring job status move to %s: %v", next, err)
		return store.JobStatus()
	}
	return next
}
