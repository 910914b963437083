// Package main implements the evaluate CLI, which runs session analyses without
// the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mentor-insights-go/internal/app"
	"mentor-insights-go/internal/config"
	"mentor-insights-go/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "evaluate",
	Short:         "Score recorded teaching sessions",
	Long:          "Runs the analysis pipeline on recorded sessions and exports the results. Settings come from the environment and an optional .env file.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads configuration and starts the service with logs on stderr.
func openApp(cmd *cobra.Command) (*app.App, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithOutput(cmd.ErrOrStderr())
	a, err := app.New(cfg, log.Entry)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func closeApp(a *app.App, log *logger.Logger) {
	if err := a.Close(context.Background()); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
