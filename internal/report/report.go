// Package report writes match reports and scan metadata as CSV.
package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"bidsconv/internal/errors"
	"bidsconv/pkg/types"
)

const (
	// MatchesFile is the default name of the match report export.
	MatchesFile = "label_matches.csv"
	// MetadataFile is the default name of the scan metadata export.
	MetadataFile = "dicom_metadata.csv"
)

var (
	MatchHeader    = []string{"label", "pattern", "modality", "dataType"}
	MetadataHeader = []string{"subject_id", "study_date", "series_desc", "modality", "file_path"}
)

// WriteMatches writes one row per match. Unmatched labels get a single row
// with empty match columns.
func WriteMatches(w io.Writer, r types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MatchHeader); err != nil {
		return err
	}
	for _, row := range r.Rows() {
		if err := cw.Write([]string{row.Label, row.Pattern, row.Modality, row.DataType}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetadata writes one row per scanned file.
func WriteMetadata(w io.Writer, infos []*types.SeriesInfo) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetadataHeader); err != nil {
		return err
	}
	for _, si := range infos {
		if si == nil {
			continue
		}
		if err := cw.Write([]string{si.PatientID, si.StudyDate, si.SeriesDescription, si.Modality, si.Path}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MatchesCSV renders r with WriteMatches.
func MatchesCSV(r types.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MetadataCSV renders infos with WriteMetadata.
func MetadataCSV(infos []*types.SeriesInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMetadata(&buf, infos); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes data to path, creating parent directories.
func Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError("failed to create report directory", dir, errors.FileCreateFailed, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError("failed to write report", path, errors.FileOperationFailed, err)
	}
	return nil
}
