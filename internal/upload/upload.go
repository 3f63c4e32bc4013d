package upload

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docuglot/chapter-translator/internal/apperr"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

// Format is the declared format of an uploaded file.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatWord     Format = "word-document"
	FormatPDF      Format = "pdf"
)

// FormatForExtension maps a filename extension to a declared format.
func FormatForExtension(ext string) (Format, error) {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".docx":
		return FormatWord, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", apperr.Newf(apperr.KindUnsupportedFormat,
			"unsupported file type %q, must be .md, .docx, or .pdf", ext)
	}
}

// Result seeds a new session: a fresh session id plus the ordered chapters.
type Result struct {
	SessionID string            `json:"session_id"`
	Chapters  []session.Chapter `json:"chapters"`
}

// Converter turns a non-markdown document into markdown.
type Converter interface {
	ToMarkdown(fileBytes []byte, format Format) (string, error)
}

// Adapter turns raw file bytes into an ordered chapter list and a session id.
type Adapter struct {
	converter Converter
}

func NewAdapter(converter Converter) *Adapter {
	return &Adapter{converter: converter}
}

// Upload validates the declared format, converts the file to markdown if
// needed, splits it into chapters and mints a session id.
func (a *Adapter) Upload(fileBytes []byte, format Format) (Result, error) {
	switch format {
	case FormatMarkdown, FormatWord, FormatPDF:
	default:
		return Result{}, apperr.Newf(apperr.KindUnsupportedFormat,
			"unsupported format %q", string(format))
	}
	if len(fileBytes) == 0 {
		return Result{}, apperr.New(apperr.KindUpload, "uploaded file is empty")
	}

	markdown := string(fileBytes)
	if format != FormatMarkdown {
		if a.converter == nil {
			return Result{}, apperr.Newf(apperr.KindUpload,
				"no converter configured for format %q", string(format))
		}
		converted, err := a.converter.ToMarkdown(fileBytes, format)
		if err != nil {
			return Result{}, apperr.Wrap(err, apperr.KindUpload, "document conversion failed")
		}
		markdown = converted
	}

	result := Result{
		SessionID: uuid.NewString(),
		Chapters:  SplitMarkdown(markdown),
	}
	log.Info("Uploaded %s document split into %d chapters as session %s",
		string(format), len(result.Chapters), result.SessionID)
	return result, nil
}

// PandocConverter converts word and pdf documents to markdown by shelling
// out to pandoc.
type PandocConverter struct {
	pandocCmd string
}

func NewPandocConverter() *PandocConverter {
	return &PandocConverter{pandocCmd: "pandoc"}
}

func (c *PandocConverter) ToMarkdown(fileBytes []byte, format Format) (string, error) {
	var inputFormat, suffix string
	switch format {
	case FormatWord:
		inputFormat, suffix = "docx", ".docx"
	case FormatPDF:
		inputFormat, suffix = "pdf", ".pdf"
	default:
		return "", fmt.Errorf("pandoc converter does not handle format %q", string(format))
	}

	cmdPath, err := exec.LookPath(c.pandocCmd)
	if err != nil {
		return "", fmt.Errorf("pandoc not found: %w", err)
	}

	tmp, err := os.CreateTemp("", "docuglot-upload-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(fileBytes); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	cmd := exec.Command(cmdPath, "--from", inputFormat, "--to", "gfm", filepath.Clean(tmpPath))
	output, err := cmd.Output()
	if err != nil {
		log.Error("pandoc conversion failed for %s: %v", string(format), err)
		return "", fmt.Errorf("pandoc conversion: %w", err)
	}
	return string(output), nil
}
