package types

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// SeriesInfo is the header metadata read from one DICOM file.
type SeriesInfo struct {
	Path              string `json:"file_path"`
	PatientID         string `json:"subject_id"`
	StudyDate         string `json:"study_date"`
	SeriesDescription string `json:"series_desc"`
	Modality          string `json:"modality"`
}

// Name returns the base name of the file
func (s *SeriesInfo) Name() string {
	return filepath.Base(s.Path)
}

// ToJSON converts SeriesInfo to a JSON string
func (s *SeriesInfo) ToJSON() string {
	jsonBytes, _ := json.Marshal(s)
	return string(jsonBytes)
}

// String returns a human-readable representation
func (s *SeriesInfo) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File: %s\n", s.Path))
	sb.WriteString(fmt.Sprintf("Subject: %s\n", s.PatientID))
	sb.WriteString(fmt.Sprintf("Series: %s\n", s.SeriesDescription))
	if s.Modality != "" {
		sb.WriteString(fmt.Sprintf("Modality: %s\n", s.Modality))
	}
	if s.StudyDate != "" {
		sb.WriteString(fmt.Sprintf("Study date: %s\n", s.StudyDate))
	}
	return sb.String()
}
