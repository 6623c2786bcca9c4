// Package errors provides standardized error handling for bidsconv.
// It defines the error kinds the converter distinguishes (an unavailable
// configuration source, a failed subject conversion, a ledger or upload
// failure) and helpers for creating, wrapping and classifying them.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrValidationFailed is wrapped by errors reporting a rule file with issues.
var ErrValidationFailed = NewConfigError("configuration failed validation", "", InvalidConfig, nil)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	FileCreateFailed
	FileOperationFailed
	// Config error kinds
	ConfigNotFound
	ConfigMalformed
	InvalidConfig
	// Conversion error kinds
	ConversionFailed
	ToolNotFound
	// Database error kinds
	DatabaseOperationFailed
	// Upload error kinds
	UploadFailed
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration sources.
// The param is the path or key the error refers to.
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// ConversionError represents a failed conversion of one subject
type ConversionError struct {
	ApplicationError
	subject string
}

// NewConversionError creates a new conversion error
func NewConversionError(msg string, subject string, kind ErrorKind, err error) *ConversionError {
	return &ConversionError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		subject: subject,
	}
}

// Error returns the conversion error message
func (e *ConversionError) Error() string {
	if e.subject != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.subject, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.subject)
	}
	return e.ApplicationError.Error()
}

// Subject returns the subject identifier associated with the error
func (e *ConversionError) Subject() string {
	return e.subject
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the first known kind in err's chain, or Unknown.
// Plain Wrap layers are skipped.
func KindOf(err error) ErrorKind {
	type kinded interface{ Kind() ErrorKind }
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k, ok := e.(kinded); ok && k.Kind() != Unknown {
			return k.Kind()
		}
	}
	return Unknown
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsConfigNotFound checks if the error reports a missing configuration source
func IsConfigNotFound(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == ConfigNotFound
	}
	return false
}

// IsConfigMalformed checks if the error reports an unparseable configuration
func IsConfigMalformed(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == ConfigMalformed
	}
	return false
}

// IsSourceUnavailable reports whether err means the configuration could not
// be obtained at all, as opposed to being obtained and failing validation.
func IsSourceUnavailable(err error) bool {
	return IsConfigNotFound(err) || IsConfigMalformed(err)
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsConversionFailed checks if the error is a subject conversion failure
func IsConversionFailed(err error) bool {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr.Kind() == ConversionFailed || convErr.Kind() == ToolNotFound
	}
	return false
}

// DatabaseError represents errors related to ledger operations
type DatabaseError struct {
	ApplicationError
	operation string
	context   map[string]interface{}
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, err error) *DatabaseError {
	return &DatabaseError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: DatabaseOperationFailed,
		},
		operation: "",
		context:   make(map[string]interface{}),
	}
}

// WithOperation adds operation information to the database error
func (e *DatabaseError) WithOperation(operation string) *DatabaseError {
	e.operation = operation
	return e
}

// WithContext adds context information to the database error
func (e *DatabaseError) WithContext(key string, value interface{}) *DatabaseError {
	e.context[key] = value
	return e
}

// Error returns the database error message
func (e *DatabaseError) Error() string {
	if e.operation != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: operation=%s: %v", e.msg, e.operation, e.err)
		}
		return fmt.Sprintf("%s: operation=%s", e.msg, e.operation)
	}
	return e.ApplicationError.Error()
}

// Operation returns the database operation associated with the error
func (e *DatabaseError) Operation() string {
	return e.operation
}

// Context returns the context information associated with the error
func (e *DatabaseError) Context() map[string]interface{} {
	return e.context
}

// IsDatabaseError checks if the error is a database error
func IsDatabaseError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}

// UploadError represents a failed object upload
type UploadError struct {
	ApplicationError
	key string
}

// NewUploadError creates a new upload error for the given object key
func NewUploadError(msg string, key string, err error) *UploadError {
	return &UploadError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: UploadFailed,
		},
		key: key,
	}
}

// Error returns the upload error message
func (e *UploadError) Error() string {
	if e.key != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.key, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.key)
	}
	return e.ApplicationError.Error()
}

// Key returns the object key associated with the error
func (e *UploadError) Key() string {
	return e.key
}

// IsUploadError checks if the error is an upload error
func IsUploadError(err error) bool {
	var upErr *UploadError
	return errors.As(err, &upErr)
}
