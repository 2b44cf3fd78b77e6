package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MorganRO8/LoA-sub000/internal/app"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the extraction prompt (or the pre-check prompt) built from the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_, prompts, err := app.LoadPrompts(cfg, ctx.log())
			if err != nil {
				return err
			}
			if check {
				fmt.Fprint(cmd.OutOrStdout(), prompts.Check)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), prompts.Extraction)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Print the yes/no pre-check prompt instead")
	return cmd
}
