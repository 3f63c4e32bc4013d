package docstore

import (
	"sync"
	"time"

	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

// Store keeps uploaded documents in memory, keyed by session id, until a
// translation job is started for them or they expire.
type Store struct {
	mu   sync.RWMutex
	docs map[string]entry
}

type entry struct {
	chapters  []session.Chapter
	createdAt time.Time
}

func New() *Store {
	return &Store{docs: make(map[string]entry)}
}

func (s *Store) Put(sessionID string, chapters []session.Chapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[sessionID] = entry{
		chapters:  append([]session.Chapter(nil), chapters...),
		createdAt: time.Now(),
	}
}

func (s *Store) Get(sessionID string) ([]session.Chapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[sessionID]
	if !ok {
		return nil, false
	}
	return append([]session.Chapter(nil), doc.chapters...), true
}

// PurgeOlderThan drops documents uploaded before the ttl. Returns the
// number of documents removed.
func (s *Store) PurgeOlderThan(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, doc := range s.docs {
		if doc.createdAt.Before(cutoff) {
			delete(s.docs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info("Purged %d expired uploaded documents", removed)
	}
	return removed
}
