package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/logger"
)

var (
	cfg      *config.Config
	flushLog func()
)

var rootCmd = &cobra.Command{
	Use:   "procura",
	Short: "Procurement process scraping and document Q&A",
	Long: `Procura reads public procurement processes from the SIPAC portal,
indexes their documents and answers questions grounded on them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.LoadConfig()
		flush, err := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return err
		}
		flushLog = flush
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if flushLog != nil {
			flushLog()
		}
	},
}

func main() {
	// SIGINT/SIGTERM cancel the command context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		zap.S().Errorw("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
