package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docuglot/chapter-translator/internal/controller"
	"github.com/docuglot/chapter-translator/internal/export"
	"github.com/docuglot/chapter-translator/internal/remote"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/pkg/log"
)

var (
	translateFile   string
	translateLang   string
	translateOutput string
	translateServer string
	translateSave   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Upload a document, translate it and export the merged result",
	Long: `Uploads the document to the translation service, starts an
asynchronous job, polls for chapters as they finish and writes the
merged markdown once the job reaches a terminal status. Chapters
already translated are exported even when the job fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranslate(cmd.Context())
	},
}

func init() {
	translateCmd.Flags().StringVarP(&translateFile, "file", "f", "", "document to translate (.md, .docx or .pdf)")
	translateCmd.Flags().StringVarP(&translateLang, "lang", "l", "", "target language code (default from TARGET_LANGUAGE)")
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "translated-document.md", "output file for the merged markdown")
	translateCmd.Flags().StringVarP(&translateServer, "server", "s", "", "service base URL (default from SERVER_URL)")
	translateCmd.Flags().BoolVar(&translateSave, "save", false, "save the session snapshot on the server after translation")
	_ = translateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(translateCmd)
}

func runTranslate(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverURL := translateServer
	if serverURL == "" {
		serverURL = cfg.Client.ServerURL
	}
	lang := translateLang
	if lang == "" {
		lang = cfg.Translate.TargetLanguage.String()
	}

	fileBytes, err := os.ReadFile(translateFile)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	client := remote.NewClient(serverURL)

	result, err := client.Upload(ctx, translateFile, fileBytes)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	fmt.Printf("Uploaded %s: session %s, %d chapters\n",
		translateFile, result.SessionID, len(result.Chapters))

	store, err := session.New(result.SessionID, result.Chapters, lang)
	if err != nil {
		return err
	}

	ctrl := controller.New(client, controller.WithPollInterval(cfg.Client.PollInterval))
	sub, err := ctrl.Start(ctx, store)
	if err != nil {
		return fmt.Errorf("start translation: %w", err)
	}

	fmt.Printf("Translating %d characters into %s (job %s)\n",
		store.TotalCharCount(), lang, sub.JobID)

	var jobErr error
	for ev := range sub.Events() {
		if ev.Err != nil {
			jobErr = ev.Err
			break
		}
		if len(ev.Ingested) > 0 || ev.Status.Terminal() {
			fmt.Printf("  %s: %d/%d chapters\n", ev.Status, ev.Completed, ev.Total)
		}
		if ev.Status.Terminal() {
			break
		}
	}
	sub.Cancel()
	<-sub.Done()

	translated := store.Snapshot().TranslatedChapters
	if jobErr != nil {
		log.Error("Translation job failed: %v", jobErr)
		if len(translated) == 0 {
			return fmt.Errorf("translation failed with no usable output")
		}
		fmt.Printf("Job failed, exporting %d already-translated chapters\n", len(translated))
	}
	if len(translated) == 0 {
		return fmt.Errorf("no translated chapters to export")
	}

	chapters := make([]export.Chapter, 0, len(translated))
	for _, tc := range translated {
		chapters = append(chapters, export.Chapter{ID: tc.ID, Content: tc.Content})
	}

	artifact, err := client.Export(ctx, store.SessionID(), chapters)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(translateOutput, artifact, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", translateOutput, len(artifact))

	if translateSave {
		if err := client.SaveSnapshot(ctx, store.Snapshot()); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Println("Session snapshot saved")
	}
	return nil
}
