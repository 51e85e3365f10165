package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginasoft/BotGastos/pkg/logging"
)

var (
	configPath string
	logger     = slog.Default()
	rootCmd    = &cobra.Command{
		Use:   "botgastos",
		Short: "Interpret Spanish expense messages and record them after confirmation",
		Long: `botgastos reads free-form Spanish expense messages (typed, transcribed or OCR'd),
classifies them, asks for confirmation and appends confirmed expenses to a ledger.

Configuration comes from an optional JSON file and the environment.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger = logging.Setup(logging.DefaultConfig())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file (environment variables take precedence)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(statusCmd())
}

func main() {
	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
