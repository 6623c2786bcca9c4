package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bidsconv/internal/bidsconfig"
)

// NewOptimizeCmd creates the optimize command
func NewOptimizeCmd() *cobra.Command {
	var (
		outPath string
		inPlace bool
	)

	cmd := &cobra.Command{
		Use:   "optimize [rule-file]",
		Short: "Rewrite case-variant tokens and drop duplicate rules",
		Long: `Produce an optimized copy of the rule file: case-variant orientation
tokens are replaced with case-insensitive groups, rules whose patterns become
identical are dropped (first one wins) and searchMethod is set to "re".
The result is printed unless --out or --write is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadRules(args)
			if err != nil {
				return err
			}

			optimized := newPatternEngine().Optimize(cfg)
			dropped := len(cfg.Descriptions) - len(optimized.Descriptions)

			target := outPath
			if inPlace {
				target = path
			}
			if target == "" {
				data, err := bidsconfig.Marshal(optimized, bidsconfig.FormatFromPath(path))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := bidsconfig.Save(optimized, target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText(fmt.Sprintf("Wrote %s to %s (%s removed)",
				count(len(optimized.Descriptions), "description", "descriptions"), target,
				count(dropped, "duplicate", "duplicates"))))
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write the optimized rule file here")
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "overwrite the input rule file")
	cmd.MarkFlagsMutuallyExclusive("out", "write")
	return cmd
}
