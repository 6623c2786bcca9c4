package types

import "time"

// ConversionResult holds the outcome of converting a single subject
type ConversionResult struct {
	Subject  string        `json:"subject"`
	Session  string        `json:"session,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
	// Output is the combined stdout and stderr of the conversion tool.
	Output string `json:"output,omitempty"`
	Error  error  `json:"-"`
}

// Succeeded reports whether the subject was converted without error.
func (r ConversionResult) Succeeded() bool {
	return r.Error == nil && !r.Skipped
}

// Status is a one-word summary used in logs and the run ledger.
func (r ConversionResult) Status() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Error != nil:
		return "failed"
	default:
		return "converted"
	}
}
