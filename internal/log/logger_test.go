package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"bidsconv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("info message")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "info message")
	buf.Reset()

	l.Warn("warn message")
	assert.Contains(t, buf.String(), "WARN:")
	assert.Contains(t, buf.String(), "warn message")
	buf.Reset()

	l.Error("error message")
	assert.Contains(t, buf.String(), "ERROR")
	buf.Reset()

	l.Infof("formatted %s", "message")
	assert.Contains(t, buf.String(), "formatted message")
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel("info"))

	l.Debug("debug message")
	assert.Empty(t, buf.String())

	l = NewLogger(WithOutput(&buf), WithLevel("debug"))
	l.Debug("debug message")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "debug message")
	buf.Reset()

	l.Debugf("formatted %s", "debug")
	assert.Contains(t, buf.String(), "formatted debug")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel("warn"))

	l.Info("quiet")
	assert.Empty(t, buf.String())
	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.With(F("subject", "sub-01"), F("rules", 2)).Info("structured message")
	output := buf.String()
	assert.Contains(t, output, "structured message")
	assert.Contains(t, output, "subject=sub-01")
	assert.Contains(t, output, "rules=2")
	buf.Reset()

	l.With(F("subject", "sub-01")).With(F("session", "01")).Info("chained fields")
	output = buf.String()
	assert.Contains(t, output, "subject=sub-01")
	assert.Contains(t, output, "session=01")
}

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithJSON())

	l.Info("json message")
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry))

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "json message", logEntry["message"])
	assert.Contains(t, logEntry, "timestamp")
	assert.Contains(t, logEntry, "caller")
	buf.Reset()

	l.With(F("label", "T1_SAG"), F("matches", 1)).Info("structured json")
	logEntry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry))
	assert.Equal(t, "T1_SAG", logEntry["label"])
	assert.Equal(t, float64(1), logEntry["matches"])
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	stdErr := fmt.Errorf("standard error")
	l.WithError(stdErr).Error("error occurred")
	assert.Contains(t, buf.String(), "standard error")
	assert.Contains(t, buf.String(), "error_kind=0")
	buf.Reset()

	configErr := errors.NewConfigError("config file not found", "config/config.json", errors.ConfigNotFound, nil)
	l.WithError(configErr).Error("cannot load")
	output := buf.String()
	assert.Contains(t, output, "param=config/config.json")
	assert.Contains(t, output, fmt.Sprintf("error_kind=%d", errors.ConfigNotFound))
	buf.Reset()

	convErr := errors.NewConversionError("dcm2bids failed", "sub-02", errors.ConversionFailed, nil)
	l.With(F("run_id", "r1")).WithError(convErr).Error("subject failed")
	output = buf.String()
	assert.Contains(t, output, "subject failed")
	assert.Contains(t, output, "subject=sub-02")
	assert.Contains(t, output, "run_id=r1")
	buf.Reset()

	upErr := errors.NewUploadError("put object", "processed_data/x.csv", nil)
	l.WithError(upErr).Warn("upload skipped")
	assert.Contains(t, buf.String(), "object_key=processed_data/x.csv")
}

func TestNestedErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	baseErr := fmt.Errorf("base error")
	fileErr := errors.NewFileError("file error", "/path/config.json", errors.FileNotFound, baseErr)
	configErr := errors.NewConfigError("config error", "config.json", errors.ConfigNotFound, fileErr)

	l.WithError(configErr).Error("nested error occurred")
	output := buf.String()
	assert.Contains(t, output, "config error: config.json: file error: /path/config.json: base error")
	assert.Contains(t, output, "path=/path/config.json")
	assert.Contains(t, output, "param=config.json")
}

func TestCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("caller test")
	assert.Contains(t, buf.String(), "logger_test.go:")
	buf.Reset()

	l.With(F("k", "v")).Info("caller through With")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/conversion.log"
	var buf bytes.Buffer

	l := NewLogger(WithOutput(&buf), WithFile(path))
	l.Info("file test message")
	require.NoError(t, l.Close())

	assert.Contains(t, buf.String(), "file test message")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file test message")
}

func TestNop(t *testing.T) {
	// Must not panic and must satisfy the interface.
	var l Logging = Nop()
	l.With(F("a", 1)).Info("dropped")
}

func TestNilErrorHandling(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.WithError(nil).Error("nil error test")
	assert.Contains(t, buf.String(), "error=<nil>")
}
