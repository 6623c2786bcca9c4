// Package log is the structured logger used across bidsconv. It wraps
// logrus with the small API the rest of the code depends on: leveled
// messages, key/value fields and error-aware helpers.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"bidsconv/internal/errors"
)

// Field is a single key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logging is the logger contract components accept. The pattern engine,
// converter and watcher take one of these so callers decide where
// diagnostics go.
type Logging interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	With(fields ...Field) Logging
	WithError(err error) Logging
}

// Logger is the logrus-backed implementation of Logging.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

type options struct {
	out   io.Writer
	json  bool
	file  string
	level logrus.Level
}

// Option configures a Logger.
type Option func(*options)

// WithOutput sends log output to w.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to JSON output.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile additionally appends log output to the file at path.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
// Unknown names are ignored.
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

// NewLogger creates a logger. Output defaults to stdout.
func NewLogger(opts ...Option) *Logger {
	o := &options{out: os.Stdout, level: logrus.DebugLevel}
	for _, opt := range opts {
		opt(o)
	}

	l := &Logger{}
	out := o.out
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = f
			out = io.MultiWriter(o.out, f)
		} else {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.file, err)
		}
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(o.level)
	if o.json {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		base.SetFormatter(&textFormatter{})
	}
	l.entry = logrus.NewEntry(base)
	return l
}

// Nop returns a logger that discards everything.
func Nop() Logging {
	return NewLogger(WithOutput(io.Discard))
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// With returns a logger carrying the given fields.
func (l *Logger) With(fields ...Field) Logging {
	return l.with(fields...)
}

func (l *Logger) with(fields ...Field) *Logger {
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(lf), file: l.file}
}

func (l *Logger) Debug(args ...interface{}) { l.emit(logrus.DebugLevel, fmt.Sprint(args...)) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(logrus.DebugLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(args ...interface{}) { l.emit(logrus.InfoLevel, fmt.Sprint(args...)) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(args ...interface{}) { l.emit(logrus.WarnLevel, fmt.Sprint(args...)) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(args ...interface{}) { l.emit(logrus.ErrorLevel, fmt.Sprint(args...)) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// emit is always called exactly two frames below the user's call site.
func (l *Logger) emit(level logrus.Level, msg string) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	entry := l.entry
	if _, file, line, ok := runtime.Caller(2); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

// errorFields expands an application error into loggable fields.
func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error()), F("error_kind", int(errors.KindOf(err)))}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var convErr *errors.ConversionError
	if errors.As(err, &convErr) && convErr.Subject() != "" {
		fields = append(fields, F("subject", convErr.Subject()))
	}
	var upErr *errors.UploadError
	if errors.As(err, &upErr) && upErr.Key() != "" {
		fields = append(fields, F("object_key", upErr.Key()))
	}
	return fields
}

// WithError returns a logger carrying the fields describing err.
func (l *Logger) WithError(err error) Logging {
	return l.with(errorFields(err)...)
}

// textFormatter renders "[timestamp] LEVEL: message key=value ...".
type textFormatter struct{}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	level := e.Level.String()
	if e.Level == logrus.WarnLevel {
		level = "warn"
	}
	fmt.Fprintf(&b, "[%s] %s: %s", e.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(level), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
