package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docuglot/chapter-translator/internal/config"
	"github.com/docuglot/chapter-translator/pkg/log"
)

var version = "0.3.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docuglot",
	Short: "Chaptered document translation service and client",
	Long: `docuglot translates chaptered documents asynchronously.

"docuglot serve" runs the HTTP service hosting upload, translation,
status and export endpoints. "docuglot translate" drives that service
from the command line: it uploads a document, starts a translation job,
polls for chapters as they finish and exports the merged result.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine, the environment may be set directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.NewFromEnv()
		if err != nil {
			return err
		}
		log.InitLogger(log.ParseLevel(cfg.LogLevel))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
