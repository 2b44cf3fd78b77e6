package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MorganRO8/LoA-sub000/internal/schema"
)

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [path]",
		Short: "Validate a schema file and print its columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Schema.Path
			if len(args) == 1 {
				path = args[0]
			}
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("no schema path: pass one or set schema.path")
			}
			s, err := schema.Load(path, ctx.log())
			if err != nil {
				return err
			}

			keys := make(map[int]bool)
			for _, k := range s.KeyColumns() {
				keys[k] = true
			}
			rows := make([][]string, 0, s.NumColumns())
			for _, col := range s.Columns() {
				key := ""
				if keys[col.Index] {
					key = "yes"
				}
				rows = append(rows, []string{
					strconv.Itoa(col.Index),
					col.Name,
					string(col.Type()),
					key,
					describeKind(col.Kind),
					col.Description,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"#", "Name", "Type", "Key", "Constraints", "Description"}, rows, []columnAlignment{alignRight}))
			for _, w := range s.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func describeKind(k schema.Kind) string {
	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+"="+strings.Join(values, "|"))
		}
	}
	intPtr := func(label string, v *int) {
		if v != nil {
			parts = append(parts, label+"="+strconv.Itoa(*v))
		}
	}
	int64Ptr := func(label string, v *int64) {
		if v != nil {
			parts = append(parts, label+"="+strconv.FormatInt(*v, 10))
		}
	}
	floatPtr := func(label string, v *float64) {
		if v != nil {
			parts = append(parts, label+"="+strconv.FormatFloat(*v, 'g', -1, 64))
		}
	}

	switch v := k.(type) {
	case schema.StringKind:
		add("allowed", v.AllowedValues)
		intPtr("min_length", v.MinLength)
		intPtr("max_length", v.MaxLength)
		add("whitelist", v.Whitelist)
		add("blacklist", v.Blacklist)
	case schema.IntegerKind:
		add("allowed", v.AllowedValues)
		int64Ptr("min", v.Min)
		int64Ptr("max", v.Max)
	case schema.FloatKind:
		add("allowed", v.AllowedValues)
		floatPtr("min", v.Min)
		floatPtr("max", v.Max)
	case schema.RangeKind:
		add("allowed", v.AllowedValues)
		floatPtr("min", v.Min)
		floatPtr("max", v.Max)
	case schema.ComplexKind:
		add("allowed", v.AllowedValues)
	}
	return strings.Join(parts, " ")
}
