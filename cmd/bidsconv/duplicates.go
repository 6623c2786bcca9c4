package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDuplicatesCmd creates the duplicates command
func NewDuplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates [rule-file]",
		Short: "Report duplicate and case-variant patterns",
		Long: `Report rules whose SeriesDescription patterns are identical, and
patterns that spell the same orientation token in two cases (SAG and Sag).
Findings are advisory; use optimize to rewrite the file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadRules(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			diagnostics := newPatternEngine().FindDuplicates(cfg)
			if len(diagnostics) == 0 {
				fmt.Fprintln(out, successText("No duplicate patterns found"))
				return nil
			}

			fmt.Fprintln(out, warningText(fmt.Sprintf("Found %s", count(len(diagnostics), "finding", "findings"))))
			for _, d := range diagnostics {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			return nil
		},
	}
	return cmd
}
