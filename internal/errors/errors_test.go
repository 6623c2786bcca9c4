package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())

	var appErr *ApplicationError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, Unknown, appErr.Kind())
}

func TestWrapping(t *testing.T) {
	origErr := New("original error")
	wrappedErr := Wrap(origErr, "wrapped")
	assert.Equal(t, "wrapped: original error", wrappedErr.Error())
	assert.Equal(t, origErr, errors.Unwrap(wrappedErr))

	// Wrapping nil returns nil
	assert.Nil(t, Wrap(nil, "wrapper"))

	deepWrapped := Wrap(wrappedErr, "deeper")
	assert.Equal(t, "deeper: wrapped: original error", deepWrapped.Error())
	assert.True(t, Is(deepWrapped, origErr))
}

func TestFileError(t *testing.T) {
	fileErr := NewFileError("cannot access", "/data/raw_dicoms", FileAccessDenied, nil)
	assert.Equal(t, "cannot access: /data/raw_dicoms", fileErr.Error())
	assert.Equal(t, "/data/raw_dicoms", fileErr.Path())
	assert.Equal(t, FileAccessDenied, fileErr.Kind())

	origErr := fmt.Errorf("permission denied")
	fileErr = NewFileError("cannot access", "/data/raw_dicoms", FileAccessDenied, origErr)
	assert.Equal(t, "cannot access: /data/raw_dicoms: permission denied", fileErr.Error())
	assert.Equal(t, origErr, errors.Unwrap(fileErr))

	notFoundErr := NewFileError("file not found", "/missing", FileNotFound, nil)
	assert.True(t, IsFileNotFound(notFoundErr))
	assert.False(t, IsFileNotFound(fileErr))
}

func TestConfigError(t *testing.T) {
	t.Run("source unavailable", func(t *testing.T) {
		notFound := NewConfigError("config file not found", "config/config.json", ConfigNotFound, nil)
		assert.Equal(t, "config file not found: config/config.json", notFound.Error())
		assert.True(t, IsConfigNotFound(notFound))
		assert.True(t, IsSourceUnavailable(notFound))
		assert.False(t, IsConfigMalformed(notFound))

		malformed := NewConfigError("config file is not valid JSON", "c.json", ConfigMalformed, fmt.Errorf("unexpected EOF"))
		assert.Equal(t, "config file is not valid JSON: c.json: unexpected EOF", malformed.Error())
		assert.True(t, IsConfigMalformed(malformed))
		assert.True(t, IsSourceUnavailable(Wrap(malformed, "load")))
	})

	t.Run("invalid config", func(t *testing.T) {
		configErr := NewConfigError("configuration failed validation", "config.json", InvalidConfig, nil)
		assert.True(t, IsInvalidConfig(configErr))
		assert.False(t, IsSourceUnavailable(configErr))
		assert.False(t, IsInvalidConfig(New("some other error")))

		var ce *ConfigError
		assert.True(t, As(configErr, &ce))
		assert.Equal(t, "config.json", ce.Param())
	})
}

func TestConversionError(t *testing.T) {
	convErr := NewConversionError("dcm2bids failed", "sub-01", ConversionFailed, fmt.Errorf("exit status 1"))
	assert.Equal(t, "dcm2bids failed: sub-01: exit status 1", convErr.Error())
	assert.Equal(t, "sub-01", convErr.Subject())
	assert.True(t, IsConversionFailed(convErr))
	assert.Equal(t, ConversionFailed, KindOf(Wrap(convErr, "batch")))

	missing := NewConversionError("dcm2bids not found", "", ToolNotFound, nil)
	assert.True(t, IsConversionFailed(missing))
	assert.Equal(t, "dcm2bids not found", missing.Error())
}

func TestDatabaseAndUploadErrors(t *testing.T) {
	dbErr := NewDatabaseError("insert failed", errors.New("locked")).WithOperation("record_result").WithContext("subject", "sub-01")
	assert.Equal(t, "insert failed: operation=record_result: locked", dbErr.Error())
	assert.Equal(t, "sub-01", dbErr.Context()["subject"])
	assert.True(t, IsDatabaseError(Wrap(dbErr, "ledger")))

	upErr := NewUploadError("put object", "processed_data/report.csv", errors.New("denied"))
	assert.Equal(t, "put object: processed_data/report.csv: denied", upErr.Error())
	assert.True(t, IsUploadError(upErr))
	assert.Equal(t, UploadFailed, upErr.Kind())
}

func TestErrorChains(t *testing.T) {
	baseErr := errors.New("base error")
	fileErr := NewFileError("file error", "/path/to/config.json", FileNotFound, baseErr)
	configErr := NewConfigError("config error", "config.json", ConfigNotFound, fileErr)

	assert.Equal(t, "config error: config.json: file error: /path/to/config.json: base error", configErr.Error())
	assert.True(t, Is(configErr, baseErr))
	assert.True(t, Is(configErr, fileErr))

	var fe *FileError
	assert.True(t, As(configErr, &fe))
	assert.Equal(t, "/path/to/config.json", fe.Path())

	assert.True(t, IsFileNotFound(configErr))
	assert.True(t, IsConfigNotFound(configErr))
	assert.Equal(t, ConfigNotFound, KindOf(configErr))
	assert.Equal(t, Unknown, KindOf(baseErr))
}
