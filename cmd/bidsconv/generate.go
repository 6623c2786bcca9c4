package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bidsconv/internal/generate"
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var (
		subjects int
		sessions int
		slices   int
	)

	cmd := &cobra.Command{
		Use:   "generate [base-dir]",
		Short: "Write a synthetic DICOM tree for testing",
		Long: `Write raw_dicoms/sub-XX/ses-YY/scan_NN/slice_NN.dcm under base-dir (default
the current directory) with T1, T2 and PD scans in sagittal and axial
orientation, and create an empty bids_output directory next to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := "."
			if len(args) > 0 {
				base = args[0]
			}

			gen := generate.New(base, generate.WithSlices(slices), generate.WithLogger(logger))
			if err := gen.Setup(); err != nil {
				return err
			}

			var files []string
			for i := 1; i <= subjects; i++ {
				written, err := gen.Subject(fmt.Sprintf("%02d", i), sessions)
				files = append(files, written...)
				if err != nil {
					return err
				}
			}

			var size uint64
			for _, f := range files {
				if info, err := os.Stat(f); err == nil {
					size += uint64(info.Size())
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), successText(fmt.Sprintf("Generated %s (%s) for %s in %s",
				count(len(files), "file", "files"), humanize.Bytes(size),
				count(subjects, "subject", "subjects"), gen.RawDir())))
			return nil
		},
	}

	cmd.Flags().IntVar(&subjects, "subjects", 3, "number of subjects")
	cmd.Flags().IntVar(&sessions, "sessions", 2, "sessions per subject")
	cmd.Flags().IntVar(&slices, "slices", 3, "slices per scan")
	return cmd
}
