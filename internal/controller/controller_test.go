package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/chapter-translator/internal/apperr"
	"github.com/docuglot/chapter-translator/internal/session"
)

// fakeClient serves scripted poll responses; the last one repeats forever.
type fakeClient struct {
	mu       sync.Mutex
	startErr error
	polls    []PollResponse
	pollErrs []error
	calls    int
}

func (f *fakeClient) StartJob(_ context.Context, _ StartRequest) (StartResponse, error) {
	if f.startErr != nil {
		return StartResponse{}, f.startErr
	}
	return StartResponse{JobID: "job-1"}, nil
}

func (f *fakeClient) PollJob(_ context.Context, _ string) (PollResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++
	if idx >= len(f.polls) {
		idx = len(f.polls) - 1
	}
	if idx < len(f.pollErrs) && f.pollErrs[idx] != nil {
		return PollResponse{}, f.pollErrs[idx]
	}
	return f.polls[idx], nil
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.New("s1", []session.Chapter{
		{ID: "c1", Title: "One", Content: "Hello"},
		{ID: "c2", Title: "Two", Content: "World"},
	}, "fr")
	require.NoError(t, err)
	return store
}

func drain(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	events := make([]Event, 0)
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	return events
}

func TestController_IngestsPartialResultsUntilCompleted(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{
			{
				Status:             StatusInProgress,
				TranslatedChapters: []TranslatedChapter{{ID: "c1", Content: "Bonjour"}},
				Completed:          1,
				Total:              2,
			},
			{
				Status: StatusCompleted,
				TranslatedChapters: []TranslatedChapter{
					{ID: "c1", Content: "Bonjour"},
					{ID: "c2", Content: "Monde"},
				},
				Completed: 2,
				Total:     2,
			},
		},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "job-1", sub.JobID)

	events := drain(t, sub)
	require.NotEmpty(t, events)

	first := events[0]
	assert.Equal(t, session.StatusInProgress, first.Status)
	assert.Equal(t, []string{"c1"}, first.Ingested)

	last := events[len(events)-1]
	assert.Equal(t, session.StatusCompleted, last.Status)

	assert.Equal(t, session.StatusCompleted, store.JobStatus())
	c1, ok := store.TranslatedFor("c1")
	require.True(t, ok)
	assert.Equal(t, "Bonjour", c1.Content)
	c2, ok := store.TranslatedFor("c2")
	require.True(t, ok)
	assert.Equal(t, "Monde", c2.Content)
	assert.True(t, store.Finalized("c1"))
	assert.True(t, store.Finalized("c2"))
}

func TestController_EmptyPollLeavesTranslationsUnchanged(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{
			{Status: StatusInProgress, TranslatedChapters: []TranslatedChapter{{ID: "c1", Content: "Bonjour"}}},
			{Status: StatusInProgress},
			{Status: StatusCompleted},
		},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	drain(t, sub)

	c1, ok := store.TranslatedFor("c1")
	require.True(t, ok)
	assert.Equal(t, "Bonjour", c1.Content)
	assert.Equal(t, uint64(1), c1.Revision)
	_, ok = store.TranslatedFor("c2")
	assert.False(t, ok)
}

func TestController_SecondStartRejectedWhileRunning(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{{Status: StatusInProgress}},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	require.True(t, ctrl.Running())

	_, err = ctrl.Start(context.Background(), store)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindJobAlreadyRunning))

	sub.Cancel()
	<-sub.Done()
	assert.False(t, ctrl.Running())
}

func TestController_StartErrorLeavesSessionIdle(t *testing.T) {
	client := &fakeClient{startErr: errors.New("boom")}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	_, err := ctrl.Start(context.Background(), store)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindJobStart))
	assert.Equal(t, session.StatusIdle, store.JobStatus())
	assert.False(t, ctrl.Running())
}

func TestController_PollErrorIsTerminalButRetainsPartials(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{
			{Status: StatusInProgress, TranslatedChapters: []TranslatedChapter{{ID: "c1", Content: "Bonjour"}}},
			{},
		},
		pollErrs: []error{nil, errors.New("connection reset")},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	events := drain(t, sub)

	last := events[len(events)-1]
	assert.Equal(t, session.StatusFailed, last.Status)
	require.Error(t, last.Err)
	assert.True(t, apperr.IsKind(last.Err, apperr.KindPoll))

	assert.Equal(t, session.StatusFailed, store.JobStatus())
	c1, ok := store.TranslatedFor("c1")
	require.True(t, ok)
	assert.Equal(t, "Bonjour", c1.Content)
}

func TestController_CancelStopsPollingWithoutRollback(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{
			{Status: StatusInProgress, TranslatedChapters: []TranslatedChapter{{ID: "c1", Content: "Bonjour"}}},
		},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)

	// Wait for at least one ingestion, then cancel.
	require.Eventually(t, func() bool {
		_, ok := store.TranslatedFor("c1")
		return ok
	}, time.Second, 5*time.Millisecond)

	sub.Cancel()
	<-sub.Done()

	client.mu.Lock()
	callsAtCancel := client.calls
	client.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	client.mu.Lock()
	callsAfter := client.calls
	client.mu.Unlock()
	assert.Equal(t, callsAtCancel, callsAfter)

	c1, ok := store.TranslatedFor("c1")
	require.True(t, ok)
	assert.Equal(t, "Bonjour", c1.Content)
	assert.False(t, ctrl.Running())
}

func TestController_RestartAllowedAfterCancel(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{{Status: StatusInProgress}},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	sub.Cancel()
	<-sub.Done()

	sub2, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, session.StatusQueued, store.JobStatus())
	sub2.Cancel()
	<-sub2.Done()
}

func TestController_UnknownChapterInPollIsSkipped(t *testing.T) {
	client := &fakeClient{
		polls: []PollResponse{
			{
				Status: StatusCompleted,
				TranslatedChapters: []TranslatedChapter{
					{ID: "ghost", Content: "nope"},
					{ID: "c2", Content: "Monde"},
				},
			},
		},
	}
	store := newTestStore(t)
	ctrl := New(client, WithPollInterval(10*time.Millisecond))

	sub, err := ctrl.Start(context.Background(), store)
	require.NoError(t, err)
	events := drain(t, sub)

	last := events[len(events)-1]
	assert.Equal(t, []string{"c2"}, last.Ingested)
	assert.Equal(t, session.StatusCompleted, store.JobStatus())
	_, ok := store.TranslatedFor("ghost")
	assert.False(t, ok)
}
