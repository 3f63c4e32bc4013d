package session

import "github.com/docuglot/chapter-translator/internal/apperr"

// Write is one versioned mutation of a translated chapter. Revisions order
// conflicting writes deterministically; wall-clock time is never consulted.
type Write struct {
	ChapterID string
	Content   string
	Origin    Origin
	Revision  uint64
}

// SetTranslated records a translation for a chapter, claiming the next
// revision past whatever is currently stored. This is the path both poll
// ingestion and user edits take: each accepted mutation strictly increases
// the chapter's revision, so a server result delivered after a local edit
// wins, and vice versa.
func (s *Store) SetTranslated(chapterID, content string, origin Origin) (TranslatedChapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[chapterID]; !ok {
		return TranslatedChapter{}, apperr.Newf(apperr.KindUnknownChapter,
			"chapter %q is not part of this session", chapterID)
	}

	revision := uint64(1)
	if current, ok := s.translated[chapterID]; ok {
		revision = current.Revision + 1
	}

	tc := TranslatedChapter{
		ID:       chapterID,
		Content:  content,
		Origin:   origin,
		Revision: revision,
	}
	s.translated[chapterID] = tc
	return tc, nil
}

// Apply merges a pre-versioned write under the last-writer-wins rule: the
// write lands only if its revision is strictly greater than the stored one.
// A stale write is discarded silently and Apply reports false. The outcome
// is the same whichever order two competing writes arrive in.
func (s *Store) Apply(w Write) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[w.ChapterID]; !ok {
		return false, apperr.Newf(apperr.KindUnknownChapter,
			"chapter %q is not part of this session", w.ChapterID)
	}

	if current, ok := s.translated[w.ChapterID]; ok && w.Revision <= current.Revision {
		return false, nil
	}

	s.translated[w.ChapterID] = TranslatedChapter{
		ID:       w.ChapterID,
		Content:  w.Content,
		Origin:   w.Origin,
		Revision: w.Revision,
	}
	return true, nil
}
