// Command minutes runs the transcription pipeline locally: one file at a time or
// over a watched drop folder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/minutesai/internal/app"
	"github.com/nikhilbhutani/minutesai/internal/config"
)

var (
	outputFormat string
	logLevel     string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "minutes",
		Short: "Transcribe meeting recordings and write meeting minutes",
		Long: `minutes converts a recording to audio, splits it when it is too large for the
speech-to-text backend, transcribes the parts concurrently and turns the
transcript into meeting minutes with a language model.

Configuration comes from the environment (and a .env file), the same variables
the API server and worker read.

Examples:
  minutes transcribe standup.m4a
  minutes transcribe board.mp4 --template board --out ./notes
  minutes watch ./inbox --out ./notes`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(app.NewLogger(logLevel))
		},
	}
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text or json")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(newTranscribeCmd(), newWatchCmd(), newTemplatesCmd(), newModelsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateOutputFormat() error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", outputFormat)
	}
	return nil
}
