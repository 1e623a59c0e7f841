package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/minutesai/internal/app"
	"github.com/nikhilbhutani/minutesai/internal/ingest"
	"github.com/nikhilbhutani/minutesai/internal/pipeline"
)

func newTranscribeCmd() *cobra.Command {
	var (
		template string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe one recording and print its minutes",
		Long: `Transcribe one recording and generate its minutes.

Without --out the minutes are printed (or the full result with --output json).
With --out, <name>.transcript.txt and <name>.minutes.md are written to that
directory.

--template takes either the name of a template from MINUTES_TEMPLATES_FILE or a
literal instruction for the language model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(); err != nil {
				return err
			}
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			core, err := app.NewCore(cfg, nil)
			if err != nil {
				return err
			}

			res, err := core.Pipeline.Run(cmd.Context(), pipeline.Input{
				Filename:  filepath.Base(path),
				MIMEType:  mime.TypeByExtension(filepath.Ext(path)),
				Body:      f,
				RequestID: uuid.NewString(),
			}, template)
			if err != nil {
				return err
			}

			if outDir != "" {
				out, err := ingest.WriteOutputs(outDir, path, res.Transcription, res.Minutes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s and %s\n", out.TranscriptPath, out.MinutesPath)
			}
			return printResult(cmd.OutOrStdout(), res, outDir != "")
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template name or literal minutes instruction")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write the transcript and minutes to")
	return cmd
}

// printResult prints the minutes in text mode unless they were already written to files.
func printResult(w io.Writer, res *pipeline.Result, written bool) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if written {
		return nil
	}
	_, err := fmt.Fprintln(w, res.Minutes)
	return err
}
