package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"table-call/internal/config"
	"table-call/internal/storage"
)

var (
	cfgFile  string
	cfg      *config.Config
	provider storage.Provider
)

// Commands annotated with noStorage run without opening the roster store.
const noStorage = "no-storage"

var rootCmd = &cobra.Command{
	Use:   "table-call",
	Short: "Table call service for the board game café",
	Long: `Serves the table pages patrons reach by scanning the QR code on their
table, the staff dashboard of active calls and the tooling to print the
QR roster.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd != serverCmd {
			initCLILogger()
		}

		if _, skip := cmd.Annotations[noStorage]; skip {
			return nil
		}
		provider, err = storage.NewProvider(context.Background(), &cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage provider: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if provider != nil {
			provider.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initCLILogger keeps command output clean: only errors, on stderr.
func initCLILogger() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./instance/config.yaml or ./config.yaml)")
}
