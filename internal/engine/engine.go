package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docuglot/chapter-translator/internal/apperr"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

// Engine runs translation jobs: a fixed pool of workers picks queued jobs
// and translates their chapters concurrently, publishing each finished
// chapter as soon as it lands so status polls return partial results.
type Engine struct {
	workerCount int
	concurrency int
	translator  Translator
	store       Store

	mu         sync.RWMutex
	jobs       map[string]*Job
	active     map[string]string // sessionID -> running/queued job id
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func New(workerCount, concurrency int, translator Translator, store Store) *Engine {
	if workerCount <= 0 {
		workerCount = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	e := &Engine{
		workerCount: workerCount,
		concurrency: concurrency,
		translator:  translator,
		store:       store,
		jobs:        make(map[string]*Job),
		active:      make(map[string]string),
		pendingIDs:  make(chan string, 256),
		stopCh:      make(chan struct{}),
	}
	e.hydrateFromStore(context.Background())
	return e
}

// Enqueue creates a queued job for the session's chapters. If the session
// already has a non-terminal job, the existing job is returned instead of
// starting a second one.
func (e *Engine) Enqueue(sessionID, targetLanguage string, chapters []session.Chapter) (*Job, error) {
	if len(chapters) == 0 {
		return nil, apperr.New(apperr.KindJobStart, "no chapters to translate")
	}
	if targetLanguage == "" {
		return nil, apperr.New(apperr.KindJobStart, "target language is required")
	}

	now := time.Now()

	e.mu.Lock()
	if id, ok := e.active[sessionID]; ok {
		if existing, exists := e.jobs[id]; exists && !existing.Status.Terminal() {
			snapshot := cloneJob(existing)
			e.mu.Unlock()
			return snapshot, nil
		}
		delete(e.active, sessionID)
	}

	job := &Job{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		TargetLanguage: targetLanguage,
		Status:         StatusQueued,
		Chapters:       append([]session.Chapter(nil), chapters...),
		Translated:     make([]TranslatedChapter, 0, len(chapters)),
		Total:          len(chapters),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.jobs[job.ID] = job
	e.active[sessionID] = job.ID
	started := e.started
	snapshot := cloneJob(job)
	e.mu.Unlock()

	e.persistJob(snapshot)
	if started {
		e.enqueuePendingID(job.ID)
	}
	log.Info("Translation job %s queued for session %s (%d chapters, target %s)",
		job.ID, sessionID, len(chapters), targetLanguage)
	return snapshot, nil
}

func (e *Engine) Get(id string) (*Job, bool) {
	e.mu.RLock()
	job, ok := e.jobs[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (e *Engine) List() []*Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ret := make([]*Job, 0, len(e.jobs))
	for _, job := range e.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true

	pending := make([]string, 0)
	for id, job := range e.jobs {
		if job.Status == StatusQueued {
			pending = append(pending, id)
		}
	}
	e.mu.Unlock()

	for _, id := range pending {
		e.enqueuePendingID(id)
	}

	for i := 0; i < e.workerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
	})
}

func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case id := <-e.pendingIDs:
			job, ok := e.markInProgress(id)
			if !ok {
				continue
			}
			if err := e.run(job); err != nil {
				e.markFailed(id, err)
				continue
			}
			e.markCompleted(id)
		}
	}
}

// run translates the job's chapters with bounded concurrency. Every
// finished chapter is published immediately; the first chapter error
// cancels the remaining work but already-published chapters stay.
func (e *Engine) run(job *Job) error {
	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(e.concurrency)

	for _, ch := range job.Chapters {
		ch := ch
		group.Go(func() error {
			translated, err := e.translator.Translate(ctx, ch.Content, job.TargetLanguage)
			if err != nil {
				log.Error("Job %s: chapter %s translation failed: %v", job.ID, ch.ID, err)
				return err
			}
			e.publishResult(job.ID, TranslatedChapter{ID: ch.ID, Content: translated})
			return nil
		})
	}
	return group.Wait()
}

func (e *Engine) enqueuePendingID(id string) {
	select {
	case e.pendingIDs <- id:
	default:
		go func() { e.pendingIDs <- id }()
	}
}

func (e *Engine) markInProgress(id string) (*Job, bool) {
	e.mu.Lock()
	job, ok := e.jobs[id]
	if !ok || job.Status != StatusQueued {
		e.mu.Unlock()
		return nil, false
	}
	job.Status = StatusInProgress
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	e.mu.Unlock()

	e.persistJob(snapshot)
	return snapshot, true
}

func (e *Engine) publishResult(id string, tc TranslatedChapter) {
	e.mu.Lock()
	job, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	job.Translated = append(job.Translated, tc)
	job.Completed = len(job.Translated)
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	e.mu.Unlock()

	e.persistJob(snapshot)
}

func (e *Engine) markCompleted(id string) {
	e.finishJob(id, StatusCompleted, nil)
}

func (e *Engine) markFailed(id string, err error) {
	e.finishJob(id, StatusFailed, err)
}

func (e *Engine) finishJob(id string, status Status, cause error) {
	e.mu.Lock()
	job, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	job.Status = status
	if cause != nil {
		job.Error = cause.Error()
	}
	job.UpdatedAt = time.Now()
	e.releaseSessionLocked(job)
	snapshot := cloneJob(job)
	e.mu.Unlock()

	e.persistJob(snapshot)
	log.Info("Translation job %s finished with status %s (%d/%d chapters)",
		id, status, snapshot.Completed, snapshot.Total)
}

func (e *Engine) releaseSessionLocked(job *Job) {
	if job == nil || job.SessionID == "" {
		return
	}
	if id, ok := e.active[job.SessionID]; ok && id == job.ID {
		delete(e.active, job.SessionID)
	}
}

// PurgeTerminal drops terminal jobs whose last update is older than ttl.
// Returns the number of jobs removed.
func (e *Engine) PurgeTerminal(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	e.mu.Lock()
	removed := make([]string, 0)
	for id, job := range e.jobs {
		if !job.Status.Terminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		e.releaseSessionLocked(job)
		delete(e.jobs, id)
		removed = append(removed, id)
	}
	e.mu.Unlock()

	for _, id := range removed {
		if e.store == nil {
			continue
		}
		if err := e.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete purged job %s from store: %v", id, err)
		}
	}
	if len(removed) > 0 {
		log.Info("Purged %d expired translation jobs", len(removed))
	}
	return len(removed)
}

func (e *Engine) hydrateFromStore(ctx context.Context) {
	if e.store == nil {
		return
	}
	loaded, err := e.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Job, 0)
	e.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusInProgress {
			// The process died mid-job; requeue so finished chapters are
			// not lost and the rest get translated again.
			job.Status = StatusQueued
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		e.jobs[job.ID] = job
		if !job.Status.Terminal() && job.SessionID != "" {
			e.active[job.SessionID] = job.ID
		}
	}
	e.mu.Unlock()

	for _, job := range toPersist {
		e.persistJob(job)
	}
}

func (e *Engine) persistJob(job *Job) {
	if e.store == nil || job == nil {
		return
	}
	if err := e.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Chapters = append([]session.Chapter(nil), job.Chapters...)
	tmp.Translated = append([]TranslatedChapter(nil), job.Translated...)
	return &tmp
}
