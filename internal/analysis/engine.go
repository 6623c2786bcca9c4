package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	serr "bidsconv/internal/errors"
	"bidsconv/internal/log"
	"bidsconv/pkg/types"
)

// DICOMMimeType is the content type reported for Part 10 files.
const DICOMMimeType = "application/dicom"

// DefaultInclude selects .dcm files at any depth.
var DefaultInclude = []string{"*.dcm", "**/*.dcm"}

// HeaderReader extracts series metadata from a single file.
type HeaderReader interface {
	ReadHeader(path string) (*types.SeriesInfo, error)
}

// DICOMReader reads DICOM headers without loading pixel data.
type DICOMReader struct{}

// ReadHeader parses the file at path and returns its series metadata.
// Missing tags are left empty.
func (DICOMReader) ReadHeader(path string) (*types.SeriesInfo, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, serr.NewFileError("failed to parse dicom header", path, serr.FileOperationFailed, err)
	}

	return &types.SeriesInfo{
		Path:              path,
		PatientID:         firstString(ds, tag.PatientID),
		StudyDate:         firstString(ds, tag.StudyDate),
		SeriesDescription: firstString(ds, tag.SeriesDescription),
		Modality:          firstString(ds, tag.Modality),
	}, nil
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	// Values are padded to even length with spaces or NULs.
	return strings.TrimRight(values[0], " \x00")
}

// Engine walks a directory of imaging files and collects their series
// metadata.
type Engine struct {
	reader   HeaderReader
	include  []glob.Glob
	patterns []string
	sniff    bool
	logger   log.Logging
}

// Option configures an Engine.
type Option func(*Engine)

// WithReader replaces the header reader.
func WithReader(r HeaderReader) Option {
	return func(e *Engine) {
		e.reader = r
	}
}

// WithInclude sets the globs, relative to the scanned directory and using
// '/' as separator, that select files for reading.
func WithInclude(patterns ...string) Option {
	return func(e *Engine) {
		e.patterns = patterns
	}
}

// WithSniff enables content sniffing for files no include glob selects.
func WithSniff(enabled bool) Option {
	return func(e *Engine) {
		e.sniff = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logging) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an analysis Engine. It fails if an include glob does not compile.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		reader:   DICOMReader{},
		patterns: DefaultInclude,
		sniff:    true,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, p := range e.patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, serr.NewConfigError("invalid include pattern", p, serr.InvalidConfig, err)
		}
		e.include = append(e.include, g)
	}
	return e, nil
}

// Scan reads the series metadata of a single file.
func (e *Engine) Scan(path string) (*types.SeriesInfo, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("failed to stat file", path, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("failed to stat file", path, serr.FileAccessDenied, err)
	}
	return e.reader.ReadHeader(path)
}

// ScanDirectory walks dir recursively and returns the metadata of every
// selected file, in walk order. Files that cannot be read are logged and
// skipped. The walk stops early if ctx is cancelled.
func (e *Engine) ScanDirectory(ctx context.Context, dir string) ([]*types.SeriesInfo, error) {
	logger := e.logger.With(log.F("directory", dir))

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("dicom directory not found", dir, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("failed to read directory", dir, serr.FileAccessDenied, err)
	}
	if !info.IsDir() {
		return nil, serr.NewFileError("not a directory", dir, serr.InvalidPath, nil)
	}

	var results []*types.SeriesInfo
	skipped := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logger.With(log.F("path", path)).WithError(walkErr).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !e.selected(dir, path) {
			return nil
		}

		si, err := e.reader.ReadHeader(path)
		if err != nil {
			skipped++
			logger.With(log.F("path", path)).WithError(err).Warn("skipping file")
			return nil
		}
		results = append(results, si)
		return nil
	})
	if err != nil {
		return results, err
	}

	logger.With(log.F("files", len(results)), log.F("skipped", skipped)).Info("dicom directory scanned")
	return results, nil
}

func (e *Engine) selected(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, g := range e.include {
		if g.Match(rel) {
			return true
		}
	}
	if !e.sniff {
		return false
	}

	mt, err := mimetype.DetectFile(path)
	return err == nil && mt.Is(DICOMMimeType)
}

// UniqueLabels returns the distinct non-empty series descriptions, sorted.
func UniqueLabels(infos []*types.SeriesInfo) []string {
	seen := make(map[string]struct{}, len(infos))
	labels := make([]string, 0, len(infos))
	for _, si := range infos {
		if si == nil || si.SeriesDescription == "" {
			continue
		}
		if _, ok := seen[si.SeriesDescription]; ok {
			continue
		}
		seen[si.SeriesDescription] = struct{}{}
		labels = append(labels, si.SeriesDescription)
	}
	sort.Strings(labels)
	return labels
}

// Subjects returns the distinct patient IDs, sorted.
func Subjects(infos []*types.SeriesInfo) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, si := range infos {
		if si == nil || si.PatientID == "" {
			continue
		}
		if _, ok := seen[si.PatientID]; !ok {
			seen[si.PatientID] = struct{}{}
			out = append(out, si.PatientID)
		}
	}
	sort.Strings(out)
	return out
}

// SubjectDirs returns the names of the sub-* directories directly under dir,
// sorted. These are the participant labels passed to the converter.
func SubjectDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("directory not found", dir, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("failed to read directory", dir, serr.FileAccessDenied, err)
	}
	var subjects []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "sub-") {
			subjects = append(subjects, entry.Name())
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}
