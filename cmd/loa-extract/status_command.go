package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MorganRO8/LoA-sub000/internal/app"
	"github.com/MorganRO8/LoA-sub000/internal/export"
	"github.com/MorganRO8/LoA-sub000/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var showDocuments bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the result table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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
			table, err := reader.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			docs, totals := export.Summarize(table)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Documents", "Extracted", "No data", "Failed", "Rows"}, [][]string{{
				strconv.Itoa(totals.Documents),
				strconv.Itoa(totals.Extracted),
				strconv.Itoa(totals.NoData),
				strconv.Itoa(totals.Failed),
				strconv.Itoa(totals.Rows),
			}}, []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight}))

			if showDocuments && len(docs) > 0 {
				rows := make([][]string, 0, len(docs))
				for _, d := range docs {
					rows = append(rows, []string{d.DocumentID, d.Status, strconv.Itoa(d.Rows)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Document", "Status", "Rows"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDocuments, "documents", false, "List every document")
	return cmd
}
