package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/chapter-translator/internal/apperr"
)

func TestApply_HigherRevisionWinsEitherOrder(t *testing.T) {
	low := Write{ChapterID: "c1", Content: "old", Origin: OriginServer, Revision: 3}
	high := Write{ChapterID: "c1", Content: "new", Origin: OriginLocalEdit, Revision: 5}

	for name, order := range map[string][]Write{
		"low then high": {low, high},
		"high then low": {high, low},
	} {
		t.Run(name, func(t *testing.T) {
			store, err := New("s1", twoChapters(), "fr")
			require.NoError(t, err)

			for _, w := range order {
				_, err := store.Apply(w)
				require.NoError(t, err)
			}

			got, ok := store.TranslatedFor("c1")
			require.True(t, ok)
			assert.Equal(t, "new", got.Content)
			assert.Equal(t, uint64(5), got.Revision)
		})
	}
}

func TestApply_EqualRevisionDiscarded(t *testing.T) {
	store, err := New("s1", twoChapters(), "fr")
	require.NoError(t, err)

	applied, err := store.Apply(Write{ChapterID: "c1", Content: "first", Origin: OriginServer, Revision: 2})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Apply(Write{ChapterID: "c1", Content: "second", Origin: OriginServer, Revision: 2})
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := store.TranslatedFor("c1")
	assert.Equal(t, "first", got.Content)
}

func TestApply_UnknownChapter(t *testing.T) {
	store, err := New("s1", twoChapters(), "fr")
	require.NoError(t, err)

	_, err = store.Apply(Write{ChapterID: "missing", Content: "x", Revision: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnknownChapter))
}

func TestMerge_LocalEditSurvivesStaleServerWrite(t *testing.T) {
	store, err := New("s1", twoChapters(), "fr")
	require.NoError(t, err)

	// Local edit lands at revision 2 after an earlier server result.
	_, err = store.SetTranslated("c1", "Bonjour", OriginServer)
	require.NoError(t, err)
	edit, err := store.SetTranslated("c1", "Bonjour!!", OriginLocalEdit)
	require.NoError(t, err)
	require.Equal(t, uint64(2), edit.Revision)

	// A late poll replaying the revision-1 server write is discarded.
	applied, err := store.Apply(Write{ChapterID: "c1", Content: "Bonjour", Origin: OriginServer, Revision: 1})
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := store.TranslatedFor("c1")
	assert.Equal(t, "Bonjour!!", got.Content)
}

func TestMerge_ServerWriteOverridesInterimLocalEdit(t *testing.T) {
	store, err := New("s1", twoChapters(), "fr")
	require.NoError(t, err)

	_, err = store.SetTranslated("c1", "draft edit", OriginLocalEdit)
	require.NoError(t, err)

	// A fresh server delivery increments past the edit and wins.
	tc, err := store.SetTranslated("c1", "Bonjour", OriginServer)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tc.Revision)

	got, _ := store.TranslatedFor("c1")
	assert.Equal(t, "Bonjour", got.Content)
	assert.Equal(t, OriginServer, got.Origin)
}
