package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"bidsconv/internal/analysis"
	"bidsconv/internal/config"
	"bidsconv/internal/errors"
	"bidsconv/internal/report"
	"bidsconv/internal/upload"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		dir      string
		doUpload bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write scan metadata and label matches as CSV",
		Long: `Scan --dicom-dir and write dicom_metadata.csv. When a rule file is set,
also write label_matches.csv with one row per label and matching rule.
With --upload the files are put into the configured S3 bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := scanDicomDir(cmd.Context())
			if err != nil {
				return err
			}

			files := map[string][]byte{}
			order := []string{report.MetadataFile}
			if files[report.MetadataFile], err = report.MetadataCSV(infos); err != nil {
				return err
			}

			if settings.RulesConfig != "" {
				_, cfg, err := loadRules(nil)
				if err != nil {
					return err
				}
				r := newPatternEngine().AnalyzeLabels(cfg, analysis.UniqueLabels(infos))
				if files[report.MatchesFile], err = report.MatchesCSV(r); err != nil {
					return err
				}
				order = append(order, report.MatchesFile)
			}

			if dir == "" {
				dir = settings.OutputDir
			}
			if dir == "" {
				dir = "."
			}

			out := cmd.OutOrStdout()
			for _, name := range order {
				path := filepath.Join(dir, name)
				if err := report.Save(path, files[name]); err != nil {
					return err
				}
				fmt.Fprintln(out, successText("Wrote "+path))
			}

			if !doUpload {
				return nil
			}
			if !settings.S3Enabled() {
				return errors.NewConfigError("no s3 endpoint or bucket configured", config.KeyS3Endpoint, errors.InvalidConfig, nil)
			}
			uploader, err := upload.NewS3Uploader(settings.S3, logger)
			if err != nil {
				return err
			}
			for _, name := range order {
				key, err := uploader.PutCSV(cmd.Context(), name, files[name])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, successText("Uploaded "+key))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory for the CSV files (default --output-dir or .)")
	cmd.Flags().BoolVar(&doUpload, "upload", false, "upload the CSV files to S3")
	return cmd
}
