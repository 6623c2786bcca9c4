package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidsconv/internal/errors"
	"bidsconv/pkg/types"
)

const validConfig = `{
  "searchMethod": "re",
  "descriptions": [
    {"dataType": "anat", "modalityLabel": "acq-sag_T1", "criteria": {"SeriesDescription": "((?=T1).+SAG|(?=SAG).+T1)"}}
  ]
}`

type call struct {
	name string
	args []string
}

// fakeRunner records invocations and fails for the listed subjects.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	failFor map[string]error
	onRun   func()
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.onRun != nil {
		f.onRun()
	}
	subject := args[3]
	if err, ok := f.failFor[subject]; ok {
		return []byte("error output"), err
	}
	return []byte("ok"), nil
}

type fakeLedger struct {
	done     map[string]bool
	recorded []types.ConversionResult
	runIDs   map[string]bool
}

func (l *fakeLedger) Succeeded(ctx context.Context, subject, session string) (bool, error) {
	return l.done[subject], nil
}

func (l *fakeLedger) Record(ctx context.Context, runID string, r types.ConversionResult) error {
	if l.runIDs == nil {
		l.runIDs = map[string]bool{}
	}
	l.runIDs[runID] = true
	l.recorded = append(l.recorded, r)
	return nil
}

type fixture struct {
	configPath string
	dicomDir   string
	outputDir  string
}

func newFixture(t *testing.T, config string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		configPath: filepath.Join(dir, "config.json"),
		dicomDir:   filepath.Join(dir, "raw_dicoms"),
		outputDir:  filepath.Join(dir, "bids_output", "nested"),
	}
	require.NoError(t, os.WriteFile(f.configPath, []byte(config), 0644))
	require.NoError(t, os.MkdirAll(f.dicomDir, 0755))
	return f
}

func (f fixture) options(r Runner) Options {
	return Options{
		ConfigPath: f.configPath,
		DicomDir:   f.dicomDir,
		OutputDir:  f.outputDir,
		Runner:     r,
	}
}

func TestNewValidatesPaths(t *testing.T) {
	f := newFixture(t, validConfig)

	t.Run("creates output dir", func(t *testing.T) {
		_, err := New(f.options(&fakeRunner{}))
		require.NoError(t, err)
		assert.DirExists(t, f.outputDir)
	})

	t.Run("missing config", func(t *testing.T) {
		opts := f.options(&fakeRunner{})
		opts.ConfigPath = filepath.Join(t.TempDir(), "missing.json")
		_, err := New(opts)
		assert.True(t, errors.IsFileNotFound(err))
	})

	t.Run("missing dicom dir", func(t *testing.T) {
		opts := f.options(&fakeRunner{})
		opts.DicomDir = filepath.Join(t.TempDir(), "missing")
		_, err := New(opts)
		assert.True(t, errors.IsFileNotFound(err))
	})

	t.Run("dicom path is a file", func(t *testing.T) {
		opts := f.options(&fakeRunner{})
		opts.DicomDir = f.configPath
		_, err := New(opts)
		assert.Equal(t, errors.InvalidPath, errors.KindOf(err))
	})
}

func TestArgs(t *testing.T) {
	f := newFixture(t, validConfig)
	e, err := New(f.options(&fakeRunner{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"-d", f.dicomDir, "-p", "sub-01", "-c", f.configPath, "-o", f.outputDir},
		e.Args("sub-01", ""))
	assert.Equal(t, []string{"-d", f.dicomDir, "-p", "sub-01", "-c", f.configPath, "-o", f.outputDir, "-s", "01"},
		e.Args("sub-01", "01"))
}

func TestConvertSubject(t *testing.T) {
	f := newFixture(t, validConfig)

	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{}
		e, err := New(f.options(runner))
		require.NoError(t, err)

		res := e.ConvertSubject(context.Background(), "sub-01", "")
		assert.True(t, res.Succeeded())
		assert.Equal(t, "converted", res.Status())
		assert.Equal(t, "ok", res.Output)
		require.Len(t, runner.calls, 1)
		assert.Equal(t, DefaultBinary, runner.calls[0].name)
	})

	t.Run("tool failure", func(t *testing.T) {
		runner := &fakeRunner{failFor: map[string]error{"sub-02": fmt.Errorf("exit status 1")}}
		e, err := New(f.options(runner))
		require.NoError(t, err)

		res := e.ConvertSubject(context.Background(), "sub-02", "")
		require.Error(t, res.Error)
		assert.True(t, errors.IsConversionFailed(res.Error))
		assert.Equal(t, errors.ConversionFailed, errors.KindOf(res.Error))
		assert.Equal(t, "failed", res.Status())
		assert.Equal(t, "error output", res.Output)

		var convErr *errors.ConversionError
		require.True(t, errors.As(res.Error, &convErr))
		assert.Equal(t, "sub-02", convErr.Subject())
	})

	t.Run("tool missing", func(t *testing.T) {
		runner := &fakeRunner{failFor: map[string]error{"sub-03": &exec.Error{Name: "dcm2bids", Err: exec.ErrNotFound}}}
		e, err := New(f.options(runner))
		require.NoError(t, err)

		res := e.ConvertSubject(context.Background(), "sub-03", "")
		assert.Equal(t, errors.ToolNotFound, errors.KindOf(res.Error))
	})

	t.Run("dry run", func(t *testing.T) {
		runner := &fakeRunner{}
		e, err := New(f.options(runner))
		require.NoError(t, err)
		e.SetDryRun(true)
		assert.True(t, e.IsDryRun())

		res := e.ConvertSubject(context.Background(), "sub-01", "01")
		assert.True(t, res.Skipped)
		assert.Empty(t, runner.calls)
	})
}

func TestConvertAll(t *testing.T) {
	t.Run("failures do not abort the batch", func(t *testing.T) {
		f := newFixture(t, validConfig)
		runner := &fakeRunner{failFor: map[string]error{"sub-02": fmt.Errorf("exit status 2")}}
		ledger := &fakeLedger{}
		opts := f.options(runner)
		opts.Ledger = ledger
		opts.Session = "01"
		e, err := New(opts)
		require.NoError(t, err)

		results, err := e.ConvertAll(context.Background(), []string{"sub-01", "sub-02", "sub-03"})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, results[0].Succeeded())
		assert.Error(t, results[1].Error)
		assert.True(t, results[2].Succeeded())
		assert.Equal(t, "01", results[2].Session)

		assert.Len(t, runner.calls, 3)
		assert.Len(t, ledger.recorded, 3)
		assert.Len(t, ledger.runIDs, 1)
	})

	t.Run("refuses invalid configuration", func(t *testing.T) {
		f := newFixture(t, `{"descriptions": [{"criteria": {"SeriesDescription": "((invalid regex"}}]}`)
		runner := &fakeRunner{}
		e, err := New(f.options(runner))
		require.NoError(t, err)

		results, err := e.ConvertAll(context.Background(), []string{"sub-01"})
		require.Error(t, err)
		assert.Nil(t, results)
		assert.True(t, errors.IsInvalidConfig(err))
		assert.ErrorIs(t, err, errors.ErrValidationFailed)
		assert.Contains(t, err.Error(), "Invalid regex in description 0")
		assert.Empty(t, runner.calls)
	})

	t.Run("malformed configuration", func(t *testing.T) {
		f := newFixture(t, `{"searchMethod":`)
		e, err := New(f.options(&fakeRunner{}))
		require.NoError(t, err)

		_, err = e.ConvertAll(context.Background(), []string{"sub-01"})
		assert.True(t, errors.IsConfigMalformed(err))
	})

	t.Run("skip done", func(t *testing.T) {
		f := newFixture(t, validConfig)
		runner := &fakeRunner{}
		opts := f.options(runner)
		opts.Ledger = &fakeLedger{done: map[string]bool{"sub-01": true}}
		opts.SkipDone = true
		e, err := New(opts)
		require.NoError(t, err)

		results, err := e.ConvertAll(context.Background(), []string{"sub-01", "sub-02"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].Skipped)
		assert.True(t, results[1].Succeeded())
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "sub-02", runner.calls[0].args[3])
	})

	t.Run("cancellation stops the batch", func(t *testing.T) {
		f := newFixture(t, validConfig)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runner := &fakeRunner{onRun: cancel}
		e, err := New(f.options(runner))
		require.NoError(t, err)

		results, err := e.ConvertAll(ctx, []string{"sub-01", "sub-02"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, results, 1)
	})
}

func TestConverterFactory(t *testing.T) {
	defer ResetConverterFactory()

	var got Options
	SetConverterFactory(func(opts Options) (Converter, error) {
		got = opts
		return nil, fmt.Errorf("factory called")
	})
	_, err := CurrentConverterFactory(Options{ConfigPath: "x.json"})
	assert.EqualError(t, err, "factory called")
	assert.Equal(t, "x.json", got.ConfigPath)

	ResetConverterFactory()
	c, err := CurrentConverterFactory(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
	assert.Nil(t, c)
}
