package convert

import (
	"context"

	"bidsconv/pkg/types"
)

// Converter runs dcm2bids for one or more subjects.
type Converter interface {
	// SetDryRun sets whether commands are run or only logged
	SetDryRun(dryRun bool)

	// Validate loads the rule file and returns its validation issues
	Validate() ([]string, error)

	// ConvertSubject converts a single subject
	ConvertSubject(ctx context.Context, subject, session string) types.ConversionResult

	// ConvertAll converts each subject after the rule file validates
	ConvertAll(ctx context.Context, subjects []string) ([]types.ConversionResult, error)
}

var _ Converter = (*Engine)(nil)
