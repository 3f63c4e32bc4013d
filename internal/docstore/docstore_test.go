package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/chapter-translator/internal/session"
)

func TestStore_PutAndGet(t *testing.T) {
	store := New()

	chapters := []session.Chapter{{ID: "c1", Title: "One", Content: "Hello"}}
	store.Put("s1", chapters)

	got, ok := store.Get("s1")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Content)

	// Returned slice is a copy, mutations do not leak back.
	got[0].Content = "mutated"
	again, _ := store.Get("s1")
	assert.Equal(t, "Hello", again[0].Content)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_PurgeOlderThan(t *testing.T) {
	store := New()
	store.Put("s1", []session.Chapter{{ID: "c1", Content: "Hello"}})

	assert.Equal(t, 0, store.PurgeOlderThan(time.Hour))
	_, ok := store.Get("s1")
	assert.True(t, ok)

	assert.Equal(t, 1, store.PurgeOlderThan(0))
	_, ok = store.Get("s1")
	assert.False(t, ok)
}
