package export

import (
	"strings"

	"github.com/docuglot/chapter-translator/internal/apperr"
)

// Chapter is one translated chapter in final document order.
type Chapter struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Markdown merges translated chapters into a single markdown artifact.
// Chapters are trimmed and joined with one blank line between them.
func Markdown(chapters []Chapter) ([]byte, error) {
	if len(chapters) == 0 {
		return nil, apperr.New(apperr.KindExport, "no chapters provided")
	}

	parts := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		parts = append(parts, strings.TrimSpace(ch.Content))
	}
	return []byte(strings.Join(parts, "\n\n")), nil
}
