package convert

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"bidsconv/internal/bidsconfig"
	serr "bidsconv/internal/errors"
	"bidsconv/internal/log"
	"bidsconv/internal/patterns"
	"bidsconv/pkg/types"
)

// DefaultBinary is the conversion tool invoked per subject.
const DefaultBinary = "dcm2bids"

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

// Run starts name with args and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Ledger records conversion outcomes across runs.
type Ledger interface {
	Succeeded(ctx context.Context, subject, session string) (bool, error)
	Record(ctx context.Context, runID string, result types.ConversionResult) error
}

// Options configures an Engine.
type Options struct {
	ConfigPath string
	DicomDir   string
	OutputDir  string
	Binary     string
	Session    string
	DryRun     bool
	// SkipDone skips subjects the ledger already lists as converted.
	SkipDone bool
	Runner   Runner
	Ledger   Ledger
	Patterns *patterns.Engine
	Logger   log.Logging
}

// Engine runs the conversion tool once per subject.
type Engine struct {
	configPath string
	dicomDir   string
	outputDir  string
	binary     string
	session    string
	dryRun     bool
	skipDone   bool
	runner     Runner
	ledger     Ledger
	patterns   *patterns.Engine
	logger     log.Logging
}

// New checks that the rule file and the DICOM directory exist and creates
// the output directory.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		configPath: opts.ConfigPath,
		dicomDir:   opts.DicomDir,
		outputDir:  opts.OutputDir,
		binary:     opts.Binary,
		session:    opts.Session,
		dryRun:     opts.DryRun,
		skipDone:   opts.SkipDone,
		runner:     opts.Runner,
		ledger:     opts.Ledger,
		patterns:   opts.Patterns,
		logger:     opts.Logger,
	}
	if e.binary == "" {
		e.binary = DefaultBinary
	}
	if e.runner == nil {
		e.runner = ExecRunner{}
	}
	if e.patterns == nil {
		e.patterns = patterns.New()
	}
	if e.logger == nil {
		e.logger = log.Nop()
	}

	if err := e.validatePaths(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) validatePaths() error {
	if _, err := os.Stat(e.configPath); err != nil {
		return serr.NewFileError("config file not found", e.configPath, serr.FileNotFound, err)
	}
	info, err := os.Stat(e.dicomDir)
	if err != nil {
		return serr.NewFileError("dicom directory not found", e.dicomDir, serr.FileNotFound, err)
	}
	if !info.IsDir() {
		return serr.NewFileError("dicom path is not a directory", e.dicomDir, serr.InvalidPath, nil)
	}
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return serr.NewFileError("failed to create output directory", e.outputDir, serr.FileCreateFailed, err)
	}
	return nil
}

// SetDryRun sets whether commands are only logged instead of run.
func (e *Engine) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// IsDryRun returns whether the engine is in dry run mode.
func (e *Engine) IsDryRun() bool {
	return e.dryRun
}

// Args returns the command line arguments for converting subject.
func (e *Engine) Args(subject, session string) []string {
	args := []string{
		"-d", e.dicomDir,
		"-p", subject,
		"-c", e.configPath,
		"-o", e.outputDir,
	}
	if session != "" {
		args = append(args, "-s", session)
	}
	return args
}

// Validate loads the rule file and returns its validation issues.
func (e *Engine) Validate() ([]string, error) {
	cfg, err := bidsconfig.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	return e.patterns.Validate(cfg), nil
}

// ConvertSubject runs the conversion tool for one subject. Failures are
// reported in the result, never returned.
func (e *Engine) ConvertSubject(ctx context.Context, subject, session string) types.ConversionResult {
	logger := e.logger.With(log.F("subject", subject))
	if session != "" {
		logger = logger.With(log.F("session", session))
	}
	result := types.ConversionResult{Subject: subject, Session: session}
	args := e.Args(subject, session)

	if e.dryRun {
		logger.Infof("Would run %s %s", e.binary, strings.Join(args, " "))
		result.Skipped = true
		return result
	}

	logger.Info("Converting subject")
	start := time.Now()
	out, err := e.runner.Run(ctx, e.binary, args...)
	result.Duration = time.Since(start)
	result.Output = string(out)

	if err != nil {
		kind := serr.ConversionFailed
		if serr.Is(err, exec.ErrNotFound) {
			kind = serr.ToolNotFound
		}
		result.Error = serr.NewConversionError("conversion failed", subject, kind, err)
		logger.With(log.F("duration", result.Duration)).WithError(result.Error).Error("Error converting subject")
		return result
	}

	logger.With(log.F("duration", result.Duration)).Info("Successfully converted subject")
	return result
}

// ConvertAll validates the rule file and then converts each subject in turn.
// It refuses to start when validation reports issues. A failing subject does
// not stop the batch; a cancelled context does, and the results gathered so
// far are returned with the context error.
func (e *Engine) ConvertAll(ctx context.Context, subjects []string) ([]types.ConversionResult, error) {
	issues, err := e.Validate()
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			e.logger.Errorf("- %s", issue)
		}
		return nil, serr.NewConfigError("configuration validation failed: "+strings.Join(issues, "; "),
			e.configPath, serr.InvalidConfig, serr.ErrValidationFailed)
	}

	runID := uuid.NewString()
	logger := e.logger.With(log.F("run_id", runID))
	results := make([]types.ConversionResult, 0, len(subjects))

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if e.skipDone && e.ledger != nil {
			done, err := e.ledger.Succeeded(ctx, subject, e.session)
			if err != nil {
				logger.With(log.F("subject", subject)).WithError(err).Warn("ledger lookup failed")
			} else if done {
				logger.With(log.F("subject", subject)).Info("Subject already converted, skipping")
				results = append(results, types.ConversionResult{Subject: subject, Session: e.session, Skipped: true})
				continue
			}
		}

		result := e.ConvertSubject(ctx, subject, e.session)
		if e.ledger != nil && !e.dryRun {
			if err := e.ledger.Record(ctx, runID, result); err != nil {
				logger.With(log.F("subject", subject)).WithError(err).Warn("failed to record result")
			}
		}
		results = append(results, result)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	logger.With(log.F("subjects", len(results)), log.F("failed", failed)).Info("Conversion batch finished")
	return results, nil
}
