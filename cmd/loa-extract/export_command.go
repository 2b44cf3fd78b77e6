package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MorganRO8/LoA-sub000/internal/app"
	"github.com/MorganRO8/LoA-sub000/internal/export"
	"github.com/MorganRO8/LoA-sub000/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [out.xlsx]",
		Short: "Write the result table to an XLSX workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := defaultExportPath(cfg.Store.Path)
			if len(args) == 1 {
				out = args[0]
			}

			s, _, err := app.LoadPrompts(cfg, ctx.log())
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg, s, ctx.log())
			if err != nil {
				return err
			}
			defer st.Close()

			reader, ok := st.(store.Reader)
			if !ok {
				return fmt.Errorf("store driver %q cannot be read back", cfg.Store.Driver)
			}
			if err := export.NewService(reader, ctx.log()).WriteFile(cmd.Context(), out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
}

func defaultExportPath(storePath string) string {
	if storePath == "" {
		return "results.xlsx"
	}
	return strings.TrimSuffix(storePath, filepath.Ext(storePath)) + ".xlsx"
}
