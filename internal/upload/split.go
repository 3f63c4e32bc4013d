package upload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docuglot/chapter-translator/internal/session"
)

// headerPattern matches markdown headers from # through ######.
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// SplitMarkdown splits markdown content into chapters on headers of any
// level. Each chapter spans its header and everything up to the next header.
// Text before the first header becomes its own chapter, and a headerless
// document becomes one "Untitled" chapter. Chapter ids follow document
// order: chapter-0, chapter-1, ...
func SplitMarkdown(content string) []session.Chapter {
	var (
		chapters     []session.Chapter
		currentLines []string
		currentTitle string
		currentLevel = 1
	)

	flush := func() {
		if len(currentLines) == 0 {
			return
		}
		title := currentTitle
		if title == "" {
			title = "Untitled"
		}
		chapters = append(chapters, session.Chapter{
			ID:      fmt.Sprintf("chapter-%d", len(chapters)),
			Title:   title,
			Level:   currentLevel,
			Content: strings.TrimSpace(strings.Join(currentLines, "\n")),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		match := headerPattern.FindStringSubmatch(line)
		if match == nil {
			currentLines = append(currentLines, line)
			continue
		}
		flush()
		currentLevel = len(match[1])
		currentTitle = strings.TrimSpace(match[2])
		currentLines = []string{line}
	}
	flush()

	if len(chapters) == 0 {
		chapters = append(chapters, session.Chapter{
			ID:      "chapter-0",
			Title:   "Untitled",
			Level:   1,
			Content: strings.TrimSpace(content),
		})
	}
	return chapters
}
