package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/PleasePrompto/ductor/internal/app"
	"github.com/PleasePrompto/ductor/internal/infra"
)

var (
	homeFlag     string
	envFileFlag  string
	logLevelFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ductor",
		Short: "ductor - chat-to-CLI agent orchestrator",
		Long: `ductor bridges a chat platform to AI coding agent CLIs. It keeps
per-chat sessions, serializes messages per chat, and runs background
observers: cron tasks, heartbeats, webhooks, and file retention.`,
		RunE: runDaemon,
	}

	rootCmd.Flags().StringVar(&homeFlag, "home", "", "Data directory (default $DUCTOR_HOME or ~/.ductor)")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", "", "Load environment variables from this file")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Override configured log level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if envFileFlag != "" {
		if err := godotenv.Load(envFileFlag); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		// Best effort: a .env next to the working directory is optional.
		_ = godotenv.Load()
	}

	a, err := app.New(app.Options{
		Home:     homeFlag,
		LogLevel: logLevelFlag,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		return err
	}
	if a.RestartRequested() {
		os.Exit(infra.ExitCodeRestart)
	}
	return nil
}
