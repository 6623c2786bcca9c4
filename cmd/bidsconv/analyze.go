package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bidsconv/internal/analysis"
	"bidsconv/internal/config"
	"bidsconv/internal/errors"
	"bidsconv/pkg/types"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [label...]",
		Short: "Show which rules match each scan label",
		Long: `Match scan labels against the rule file. Labels are taken from the
arguments, or read from the SeriesDescription of every DICOM file under
--dicom-dir when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadRules(nil)
			if err != nil {
				return err
			}

			labels := args
			if len(labels) == 0 {
				infos, err := scanDicomDir(cmd.Context())
				if err != nil {
					return err
				}
				labels = analysis.UniqueLabels(infos)
			}

			report := newPatternEngine().AnalyzeLabels(cfg, labels)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// scanDicomDir reads the headers of every selected file under the
// configured DICOM directory.
func scanDicomDir(ctx context.Context) ([]*types.SeriesInfo, error) {
	if settings.DicomDir == "" {
		return nil, errors.NewConfigError("dicom directory is required", config.KeyDicomDir, errors.InvalidConfig, nil)
	}
	engine, err := newAnalysisEngine()
	if err != nil {
		return nil, err
	}
	return engine.ScanDirectory(ctx, settings.DicomDir)
}

func printReport(out io.Writer, report types.Report) {
	fmt.Fprintln(out, headerText("Label analysis"))
	for _, lm := range report.Labels {
		fmt.Fprintln(out, infoText(lm.Label))
		if !lm.Matched() {
			fmt.Fprintln(out, "  "+warningText("no matching rule"))
			continue
		}
		for _, m := range lm.Matches {
			fmt.Fprintf(out, "  %s -> %s/%s\n", m.Pattern, m.DataType, m.Modality)
		}
	}

	unmatched := report.Unmatched()
	ambiguous := report.Ambiguous()
	fmt.Fprintln(out)
	fmt.Fprintln(out, mutedText(fmt.Sprintf("%s, %s unmatched, %s ambiguous",
		count(len(report.Labels), "label", "labels"),
		count(len(unmatched), "label", "labels"),
		count(len(ambiguous), "label", "labels"))))
}
