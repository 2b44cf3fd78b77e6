package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MorganRO8/LoA-sub000/internal/app"
	"github.com/MorganRO8/LoA-sub000/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		schemaPath string
		sourceDir  string
		storePath  string
		workers    int
		maxRetries int
		skipCheck  bool
		strict     bool
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every unprocessed document in the source directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("schema") {
				cfg.Schema.Path = schemaPath
			}
			if flags.Changed("source") {
				cfg.Source.Dir = sourceDir
			}
			if flags.Changed("store") {
				cfg.Store.Path = storePath
			}
			if flags.Changed("workers") {
				cfg.Extraction.Workers = workers
			}
			if flags.Changed("max-retries") {
				cfg.Extraction.MaxRetries = maxRetries
			}
			if flags.Changed("skip-check") {
				cfg.Extraction.SkipCheck = skipCheck
			}
			if flags.Changed("strict-types") {
				cfg.Extraction.StrictTypes = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(runCtx, cfg, app.Options{Logger: ctx.log()})
			if err != nil {
				return err
			}
			defer a.Close()

			if wait > 0 {
				if err := a.WaitForBackend(runCtx, wait); err != nil {
					return err
				}
			}

			start := time.Now()
			stats, err := a.Run(runCtx)
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(cmd.OutOrStdout(), stats, time.Since(start)))
			if err != nil && runCtx.Err() != nil {
				return context.Canceled
			}
			return err
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file (overrides schema.path)")
	cmd.Flags().StringVar(&sourceDir, "source", "", "Document directory (overrides source.dir)")
	cmd.Flags().StringVar(&storePath, "store", "", "Result table path (overrides store.path)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Documents processed concurrently")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Extraction attempts per document")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the yes/no relevance pre-check")
	cmd.Flags().BoolVar(&strict, "strict-types", false, "Reject malformed range and boolean cells")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the inference service before starting")
	return cmd
}

func renderStats(out io.Writer, s pipeline.Stats, elapsed time.Duration) string {
	rows := [][]string{
		{"listed", strconv.Itoa(s.Listed)},
		{"resumed", strconv.Itoa(s.Resumed)},
		{"duplicates", strconv.Itoa(s.Duplicates)},
		{"succeeded", strconv.Itoa(s.Succeeded)},
		{"no data", strconv.Itoa(s.NoData)},
		{"failed", strconv.Itoa(s.Failed)},
		{"load errors", strconv.Itoa(s.LoadErrors)},
		{"persist errors", strconv.Itoa(s.PersistErrors)},
		{"elapsed", elapsed.Round(time.Millisecond).String()},
	}
	return renderTable(out, []string{"Run", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
