package mt

import (
	"context"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/docuglot/chapter-translator/pkg/log"
)

const translateSystemPrompt = `You are a professional document translator.
Translate the markdown content you receive from %s into %s.
Preserve all markdown structure: headers, lists, links, code blocks and inline formatting.
Do not translate code inside code blocks or URLs.
Return only the translated markdown, with no commentary.`

// LLMTranslator translates chapter content through a chat-completions model,
// detecting the source language per chapter.
type LLMTranslator struct {
	client *Client
}

func NewLLMTranslator(client *Client) *LLMTranslator {
	return &LLMTranslator{client: client}
}

func (t *LLMTranslator) Translate(ctx context.Context, content, targetLanguage string) (string, error) {
	source := DetectLanguage(content)
	target := languageName(targetLanguage)

	reply, err := t.client.ChatCompletion(ctx, []Message{
		{Role: "system", Content: fmt.Sprintf(translateSystemPrompt, source, target)},
		{Role: "user", Content: content},
	})
	if err != nil {
		return "", fmt.Errorf("translate chapter: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// DetectLanguage names the dominant language of the text, falling back to
// "the source language" when detection is unreliable.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "the source language"
	}
	return info.Lang.String()
}

// languageName resolves an ISO code like "de" to a human-readable name the
// model understands; unknown codes pass through unchanged.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		log.Warn("Unrecognized target language code %q, passing through", code)
		return code
	}
	return display.English.Tags().Name(tag)
}

// PassthroughTranslator returns content unchanged. Used when no model is
// configured, so the pipeline stays runnable offline.
type PassthroughTranslator struct{}

func NewPassthroughTranslator() PassthroughTranslator {
	return PassthroughTranslator{}
}

func (PassthroughTranslator) Translate(_ context.Context, content, _ string) (string, error) {
	return content, nil
}
