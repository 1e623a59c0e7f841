package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/minutesai/internal/config"
	"github.com/nikhilbhutani/minutesai/internal/llm"
	"github.com/nikhilbhutani/minutesai/internal/prompt"
)

func newTemplatesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the named minutes templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(); err != nil {
				return err
			}
			if file == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				file = cfg.Minutes.TemplatesFile
			}
			lib, err := prompt.Load(file)
			if err != nil {
				return err
			}

			list := lib.List()
			if outputFormat == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no templates configured (set MINUTES_TEMPLATES_FILE)")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Template file (default MINUTES_TEMPLATES_FILE)")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the language models available with the configured API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			models := llm.NewGateway(cfg.LLM).ListModels()
			if outputFormat == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(models)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL")
			for _, m := range models {
				marker := ""
				if m.Model == cfg.Minutes.Model {
					marker = " (minutes)"
				}
				fmt.Fprintf(tw, "%s\t%s%s\n", m.Provider, m.Model, marker)
			}
			return tw.Flush()
		},
	}
}
