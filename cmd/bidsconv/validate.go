package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bidsconv/internal/bidsconfig"
	"bidsconv/internal/errors"
	"bidsconv/pkg/types"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [rule-file]",
		Short: "Check a dcm2bids rule file",
		Long: `Check that every rule has a compilable SeriesDescription pattern, a
dataType and a modalityLabel, and that searchMethod is "re".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadRules(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			issues := newPatternEngine().Validate(cfg)
			if len(issues) == 0 {
				fmt.Fprintln(out, successText("Configuration is valid: "+path))
				return nil
			}

			fmt.Fprintln(out, errorText(fmt.Sprintf("Found %s in %s", count(len(issues), "issue", "issues"), path)))
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return errors.NewConfigError("configuration validation failed: "+strings.Join(issues, "; "),
				path, errors.InvalidConfig, errors.ErrValidationFailed)
		},
	}
	return cmd
}

// loadRules resolves the rule file from the first argument or the settings
// and loads it.
func loadRules(args []string) (string, *types.Config, error) {
	path := settings.RulesConfig
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", nil, settings.RequireRules()
	}
	cfg, err := bidsconfig.Load(path)
	if err != nil {
		return path, nil, err
	}
	logger.Debugf("Loaded %s from %s", count(len(cfg.Descriptions), "description", "descriptions"), path)
	return path, cfg, nil
}
