// Package generate writes synthetic DICOM trees for exercising the
// conversion pipeline without real patient data.
package generate

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	serr "bidsconv/internal/errors"
	"bidsconv/internal/log"
)

const (
	mrImageStorage       = "1.2.840.10008.5.1.4.1.1.4"
	explicitVRLittle     = "1.2.840.10008.1.2.1"
	implementationUID    = "1.2.826.0.1.3680043.10.1023"
	imageSize            = 16
	defaultSlices        = 3
	rawDirName           = "raw_dicoms"
	bidsDirName          = "bids_output"
	studyDateLayout      = "20060102"
	defaultPatientPrefix = "TEST^Subject"
)

// ScanType is one acquisition generated per session.
type ScanType struct {
	SeriesDescription string
	Description       string
}

// DefaultScanTypes are T1, T2 and PD acquisitions in sagittal and axial planes.
var DefaultScanTypes = []ScanType{
	{"T1_SAG", "Sagittal T1-weighted"},
	{"T1_AX", "Axial T1-weighted"},
	{"T2_SAG", "Sagittal T2-weighted"},
	{"T2_AX", "Axial T2-weighted"},
	{"PD_SAG", "Sagittal PD-weighted"},
	{"PD_AX", "Axial PD-weighted"},
}

// Generator creates sample data under a base directory:
//
//	<base>/raw_dicoms/sub-XX/ses-YY/scan_NN/slice_NN.dcm
//	<base>/bids_output/
type Generator struct {
	base      string
	scanTypes []ScanType
	slices    int
	now       func() time.Time
	logger    log.Logging
}

// Option configures a Generator.
type Option func(*Generator)

// WithScanTypes replaces the default acquisitions.
func WithScanTypes(st []ScanType) Option {
	return func(g *Generator) { g.scanTypes = st }
}

// WithSlices sets the number of files written per scan.
func WithSlices(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.slices = n
		}
	}
}

// WithClock sets the time source used for study dates.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l log.Logging) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator rooted at base.
func New(base string, opts ...Option) *Generator {
	g := &Generator{
		base:      base,
		scanTypes: DefaultScanTypes,
		slices:    defaultSlices,
		now:       time.Now,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RawDir is where DICOM files are written.
func (g *Generator) RawDir() string { return filepath.Join(g.base, rawDirName) }

// BIDSDir is the conversion output directory prepared by Setup.
func (g *Generator) BIDSDir() string { return filepath.Join(g.base, bidsDirName) }

// Setup creates the raw and output directories.
func (g *Generator) Setup() error {
	for _, dir := range []string{g.RawDir(), g.BIDSDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return serr.NewFileError("failed to create directory", dir, serr.FileCreateFailed, err)
		}
	}
	return nil
}

// Subject writes every scan for sessions 1..sessions of subject and returns
// the paths written. Each session's study date is that many days before now.
func (g *Generator) Subject(subject string, sessions int) ([]string, error) {
	var written []string
	patientName := defaultPatientPrefix + subject

	for session := 1; session <= sessions; session++ {
		studyDate := g.now().AddDate(0, 0, -session).Format(studyDateLayout)
		sessionDir := filepath.Join(g.RawDir(), "sub-"+subject, fmt.Sprintf("ses-%02d", session))

		for idx, st := range g.scanTypes {
			scanDir := filepath.Join(sessionDir, fmt.Sprintf("scan_%02d", idx+1))
			if err := os.MkdirAll(scanDir, 0755); err != nil {
				return written, serr.NewFileError("failed to create scan directory", scanDir, serr.FileCreateFailed, err)
			}

			seriesUID := newUID()
			for slice := 1; slice <= g.slices; slice++ {
				path := filepath.Join(scanDir, fmt.Sprintf("slice_%02d.dcm", slice))
				img := Image{
					PatientName:       patientName,
					PatientID:         "ID_TEST",
					StudyDate:         studyDate,
					SeriesDescription: st.SeriesDescription,
					SeriesInstanceUID: seriesUID,
					InstanceNumber:    slice,
				}
				if err := WriteFile(path, img); err != nil {
					return written, err
				}
				written = append(written, path)
			}
		}
	}

	g.logger.With(log.F("subject", subject), log.F("files", len(written))).Info("generated subject data")
	return written, nil
}

// Image is the header content of one synthetic file.
type Image struct {
	PatientName       string
	PatientID         string
	StudyDate         string
	SeriesDescription string
	SeriesInstanceUID string
	InstanceNumber    int
}

// WriteFile writes a single-frame 16x16 MR image with zero pixels.
func WriteFile(path string, img Image) error {
	ds, err := img.dataset()
	if err != nil {
		return serr.NewFileError("failed to build dicom dataset", path, serr.FileCreateFailed, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return serr.NewFileError("failed to create dicom file", path, serr.FileCreateFailed, err)
	}
	if err := dicom.Write(f, ds, dicom.SkipVRVerification()); err != nil {
		f.Close()
		return serr.NewFileError("failed to write dicom file", path, serr.FileOperationFailed, err)
	}
	if err := f.Close(); err != nil {
		return serr.NewFileError("failed to close dicom file", path, serr.FileOperationFailed, err)
	}
	return nil
}

func (img Image) dataset() (dicom.Dataset, error) {
	sopUID := newUID()
	seriesUID := img.SeriesInstanceUID
	if seriesUID == "" {
		seriesUID = newUID()
	}

	pixels := make([][]int, imageSize*imageSize)
	for i := range pixels {
		pixels[i] = []int{0}
	}
	pixelData := dicom.PixelDataInfo{
		Frames: []*frame.Frame{{
			NativeData: frame.NativeFrame{
				BitsPerSample: 16,
				Rows:          imageSize,
				Cols:          imageSize,
				Data:          pixels,
			},
		}},
	}

	// Elements are listed in ascending tag order.
	values := []struct {
		t tag.Tag
		v interface{}
	}{
		{tag.FileMetaInformationVersion, []byte{0x00, 0x01}},
		{tag.MediaStorageSOPClassUID, []string{mrImageStorage}},
		{tag.MediaStorageSOPInstanceUID, []string{sopUID}},
		{tag.TransferSyntaxUID, []string{explicitVRLittle}},
		{tag.ImplementationClassUID, []string{implementationUID}},
		{tag.SOPClassUID, []string{mrImageStorage}},
		{tag.SOPInstanceUID, []string{sopUID}},
		{tag.StudyDate, []string{img.StudyDate}},
		{tag.Modality, []string{"MR"}},
		{tag.SeriesDescription, []string{img.SeriesDescription}},
		{tag.PatientName, []string{img.PatientName}},
		{tag.PatientID, []string{img.PatientID}},
		{tag.SeriesInstanceUID, []string{seriesUID}},
		{tag.SeriesNumber, []string{"1"}},
		{tag.InstanceNumber, []string{fmt.Sprint(img.InstanceNumber)}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.PhotometricInterpretation, []string{"MONOCHROME2"}},
		{tag.Rows, []int{imageSize}},
		{tag.Columns, []int{imageSize}},
		{tag.BitsAllocated, []int{16}},
		{tag.BitsStored, []int{16}},
		{tag.HighBit, []int{15}},
		{tag.PixelRepresentation, []int{0}},
		{tag.PixelData, pixelData},
	}

	ds := dicom.Dataset{}
	for _, tv := range values {
		elem, err := dicom.NewElement(tv.t, tv.v)
		if err != nil {
			return ds, fmt.Errorf("element %s: %w", tv.t, err)
		}
		ds.Elements = append(ds.Elements, elem)
	}
	return ds, nil
}

// newUID returns a UID under the 2.25 root derived from a random UUID.
func newUID() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}
