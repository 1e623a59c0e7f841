package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/minutesai/internal/app"
	"github.com/nikhilbhutani/minutesai/internal/ingest"
	"github.com/nikhilbhutani/minutesai/internal/pipeline"
)

func newWatchCmd() *cobra.Command {
	var (
		template      string
		outDir        string
		maxConcurrent int
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Process recordings dropped into a folder",
		Long: `Watch a folder and process every new recording dropped into it.

The folder defaults to INGEST_INPUT_DIR and the output directory to
INGEST_OUTPUT_DIR. Each recording yields <name>.transcript.txt and
<name>.minutes.md in the output directory. Stop with Ctrl-C; recordings being
processed are finished first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.Ingest.InputDir
			if len(args) == 1 {
				dir = args[0]
			}
			if outDir == "" {
				outDir = cfg.Ingest.OutputDir
			}
			if dir == "" || outDir == "" {
				return errors.New("both an input directory and --out are required")
			}
			if maxConcurrent <= 0 {
				maxConcurrent = cfg.Ingest.MaxConcurrent
			}

			core, err := app.NewCore(cfg, nil)
			if err != nil {
				return err
			}

			handle := func(ctx context.Context, path string) error {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				res, err := core.Pipeline.Run(ctx, pipeline.Input{
					Filename:  filepath.Base(path),
					MIMEType:  mime.TypeByExtension(filepath.Ext(path)),
					Body:      f,
					RequestID: uuid.NewString(),
				}, template)
				if err != nil {
					return err
				}
				out, err := ingest.WriteOutputs(outDir, path, res.Transcription, res.Minutes)
				if err != nil {
					return err
				}
				slog.Info("minutes written", "input", path, "minutes", out.MinutesPath, "chunks", res.ChunkCount)
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, out.MinutesPath)
				return nil
			}

			w, err := ingest.NewWatcher(dir, handle, ingest.Options{MaxConcurrent: maxConcurrent})
			if err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s, writing to %s\n", dir, outDir)
			if err := w.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template name or literal minutes instruction")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write transcripts and minutes to")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Recordings processed at once (default INGEST_MAX_CONCURRENT)")
	return cmd
}
