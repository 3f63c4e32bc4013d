package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/docuglot/chapter-translator/internal/apperr"
	"github.com/docuglot/chapter-translator/internal/engine"
	"github.com/docuglot/chapter-translator/internal/export"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/internal/upload"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	format := upload.Format(r.FormValue("format"))
	if format == "" {
		ext := filepath.Ext(header.Filename)
		format, err = upload.FormatForExtension(ext)
		if err != nil {
			writeAppError(w, err)
			return
		}
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := s.uploader.Upload(fileBytes, format)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.docs.Put(result.SessionID, result.Chapters)
	writeJSON(w, http.StatusOK, result)
}

type translateRequest struct {
	SessionID      string `json:"session_id"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	chapters, ok := s.docs.Get(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	job, err := s.engine.Enqueue(req.SessionID, req.TargetLanguage, chapters)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID})
}

type statusResponse struct {
	Status             string                     `json:"status"`
	TranslatedChapters []engine.TranslatedChapter `json:"translated_chapters"`
	Completed          int                        `json:"completed"`
	Total              int                        `json:"total"`
	Error              string                     `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	jobID = strings.TrimSuffix(jobID, "/")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	job, ok := s.engine.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:             string(job.Status),
		TranslatedChapters: job.Translated,
		Completed:          job.Completed,
		Total:              job.Total,
		Error:              job.Error,
	})
}

type exportRequest struct {
	SessionID string           `json:"session_id"`
	Chapters  []export.Chapter `json:"chapters"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	artifact, err := export.Markdown(req.Chapters)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="translated-document.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		snap, err := s.snapshots.LoadSnapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if snap == nil {
			writeJSON(w, http.StatusOK, map[string]any{"found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": true, "snapshot": snap})
	case http.MethodPost:
		var snap session.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if snap.SessionID == "" || len(snap.Chapters) == 0 {
			writeError(w, http.StatusBadRequest, "snapshot requires a session id and chapters")
			return
		}
		if err := s.snapshots.SaveSnapshot(r.Context(), snap); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.List())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeAppError maps the typed error taxonomy onto HTTP status codes.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err))
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindInvalidInput, apperr.KindUnsupportedFormat,
		apperr.KindJobStart, apperr.KindExport, apperr.KindInvalidTransition:
		status = http.StatusBadRequest
	case apperr.KindUnknownChapter:
		status = http.StatusNotFound
	case apperr.KindJobAlreadyRunning:
		status = http.StatusConflict
	case apperr.KindUpload:
		status = http.StatusInternalServerError
	}
	writeError(w, status, appErr.Error())
}
