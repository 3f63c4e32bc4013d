package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"

	"github.com/docuglot/chapter-translator/internal/docstore"
	"github.com/docuglot/chapter-translator/internal/engine"
	"github.com/docuglot/chapter-translator/internal/httpapi"
	"github.com/docuglot/chapter-translator/internal/mt"
	"github.com/docuglot/chapter-translator/internal/persistence"
	"github.com/docuglot/chapter-translator/internal/upload"
	"github.com/docuglot/chapter-translator/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

var cleanupGroup singleflight.Group

func runServe() error {
	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	translator, err := buildTranslator()
	if err != nil {
		return err
	}

	eng := engine.New(cfg.Engine.Workers, cfg.Engine.ChapterConcurrency, translator, store)
	eng.Start()
	defer eng.Stop()

	docs := docstore.New()
	uploader := upload.NewAdapter(upload.NewPandocConverter())

	server := httpapi.NewServer(uploader, docs, eng,
		httpapi.WithSnapshotStore(store),
		httpapi.WithMaxUploadBytes(cfg.Server.MaxUploadMB<<20),
	)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Cleanup.CronExpr, func() {
		_, _, _ = cleanupGroup.Do("cleanup", func() (any, error) {
			docs.PurgeOlderThan(cfg.Cleanup.TTL)
			eng.PurgeTerminal(cfg.Cleanup.TTL)
			return nil, nil
		})
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func buildTranslator() (engine.Translator, error) {
	if cfg.LLM.APIKey == "" {
		log.Warn("LLM_API_KEY not set, using passthrough translator")
		return mt.NewPassthroughTranslator(), nil
	}
	client, err := mt.NewClient(mt.ClientConfig{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return mt.NewLLMTranslator(client), nil
}
