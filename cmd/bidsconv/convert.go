package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"bidsconv/internal/analysis"
	"bidsconv/internal/config"
	"bidsconv/internal/convert"
	"bidsconv/internal/errors"
	"bidsconv/internal/store"
	"bidsconv/pkg/types"
)

// NewConvertCmd creates the convert command
func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run dcm2bids for each subject",
		Long: `Validate the rule file, then run dcm2bids once per subject. Subjects come
from --subject, or from the sub-* directories under --dicom-dir. A failing
subject does not stop the batch. With --ledger, outcomes are recorded and
--skip-done skips subjects that already converted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.RequireConversion(); err != nil {
				return err
			}

			subjects := settings.Subjects
			if len(subjects) == 0 {
				found, err := analysis.SubjectDirs(settings.DicomDir)
				if err != nil {
					return err
				}
				subjects = found
			}
			if len(subjects) == 0 {
				return errors.NewConfigError("no subjects given and no sub-* directories found",
					config.KeySubjects, errors.InvalidConfig, nil)
			}

			opts := converterOptions(settings)
			if settings.LedgerDSN != "" {
				ledger, err := store.Open(cmd.Context(), settings.LedgerDSN, logger)
				if err != nil {
					return err
				}
				defer ledger.Close()
				opts.Ledger = ledger
			}

			converter, err := convert.CurrentConverterFactory(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if settings.DryRun {
				fmt.Fprintln(out, infoText("Dry run: dcm2bids will not be started"))
			}

			results, err := converter.ConvertAll(cmd.Context(), subjects)
			printResults(out, results)
			if err != nil {
				return err
			}

			if failed := countFailed(results); failed > 0 {
				return errors.NewConversionError(fmt.Sprintf("%s failed", count(failed, "subject", "subjects")),
					"", errors.ConversionFailed, nil)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("subject", nil, "subject to convert, e.g. sub-01 (repeatable)")
	flags.String("session", "", "session label passed to dcm2bids")
	flags.String("dcm2bids", convert.DefaultBinary, "dcm2bids executable")
	flags.String("ledger", "", "run ledger DSN (sqlite path or postgres:// URL)")
	flags.Bool("dry-run", false, "log the commands without running them")
	flags.Bool("skip-done", false, "skip subjects the ledger lists as converted")

	bind(flags.Lookup("subject"), config.KeySubjects)
	bind(flags.Lookup("session"), config.KeySession)
	bind(flags.Lookup("dcm2bids"), config.KeyBinary)
	bind(flags.Lookup("ledger"), config.KeyLedger)
	bind(flags.Lookup("dry-run"), config.KeyDryRun)
	bind(flags.Lookup("skip-done"), config.KeySkipDone)
	return cmd
}

func countFailed(results []types.ConversionResult) int {
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	return failed
}

func printResults(out io.Writer, results []types.ConversionResult) {
	if len(results) == 0 {
		return
	}
	converted, skipped := 0, 0
	for _, r := range results {
		switch r.Status() {
		case "converted":
			converted++
			fmt.Fprintf(out, "%s %s %s\n", successText("ok"), r.Subject, mutedText(r.Duration.Round(time.Millisecond).String()))
		case "skipped":
			skipped++
			fmt.Fprintf(out, "%s %s\n", mutedText("skip"), r.Subject)
		default:
			fmt.Fprintf(out, "%s %s: %v\n", errorText("fail"), r.Subject, r.Error)
		}
	}
	fmt.Fprintln(out, headerText(fmt.Sprintf("%s converted, %s skipped, %s failed",
		count(converted, "subject", "subjects"),
		humanCount(skipped), humanCount(countFailed(results)))))
}
