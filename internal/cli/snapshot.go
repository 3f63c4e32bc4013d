package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/docuglot/chapter-translator/internal/export"
	"github.com/docuglot/chapter-translator/internal/remote"
	"github.com/docuglot/chapter-translator/internal/session"
)

var (
	sessionServer string
	sessionOutput string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with the saved session snapshot",
}

var sessionLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the saved session and optionally export its translation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionLoad(cmd.Context())
	},
}

func init() {
	sessionCmd.PersistentFlags().StringVarP(&sessionServer, "server", "s", "", "service base URL (default from SERVER_URL)")
	sessionLoadCmd.Flags().StringVarP(&sessionOutput, "output", "o", "", "write the merged markdown to this file")
	sessionCmd.AddCommand(sessionLoadCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionLoad(ctx context.Context) error {
	serverURL := sessionServer
	if serverURL == "" {
		serverURL = cfg.Client.ServerURL
	}

	client := remote.NewClient(serverURL)
	snap, err := client.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		fmt.Println("No saved session found")
		return nil
	}

	store, err := session.FromSnapshot(*snap)
	if err != nil {
		return fmt.Errorf("saved session is unusable: %w", err)
	}

	fmt.Printf("Session %s (%s): %d chapters, %d translated, saved %s\n",
		snap.SessionID,
		snap.SelectedLanguage,
		len(snap.Chapters),
		len(snap.TranslatedChapters),
		time.Unix(snap.Timestamp, 0).Format(time.RFC3339))

	if sessionOutput == "" {
		return nil
	}
	if len(snap.TranslatedChapters) == 0 {
		return fmt.Errorf("saved session has no translated chapters to export")
	}

	chapters := make([]export.Chapter, 0, len(snap.TranslatedChapters))
	for _, tc := range store.Snapshot().TranslatedChapters {
		chapters = append(chapters, export.Chapter{ID: tc.ID, Content: tc.Content})
	}
	artifact, err := export.Markdown(chapters)
	if err != nil {
		return err
	}
	if err := os.WriteFile(sessionOutput, artifact, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", sessionOutput, len(artifact))
	return nil
}
