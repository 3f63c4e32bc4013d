package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/docuglot/chapter-translator/internal/docstore"
	"github.com/docuglot/chapter-translator/internal/engine"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/internal/upload"
)

// snapshotStore is the persistence seam for the saved session record.
type snapshotStore interface {
	SaveSnapshot(ctx context.Context, snap session.Snapshot) error
	LoadSnapshot(ctx context.Context) (*session.Snapshot, error)
}

type Server struct {
	uploader  *upload.Adapter
	docs      *docstore.Store
	engine    *engine.Engine
	snapshots snapshotStore

	maxUploadBytes int64

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithSnapshotStore(store snapshotStore) Option {
	return func(s *Server) {
		s.snapshots = store
	}
}

func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

func NewServer(uploader *upload.Adapter, docs *docstore.Store, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		uploader:       uploader,
		docs:           docs,
		engine:         eng,
		maxUploadBytes: 40 << 20,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/translate", s.handleTranslate)
	s.mux.HandleFunc("/api/status/", s.handleStatus)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/health", s.handleHealth)
}
