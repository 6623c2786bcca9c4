package types

import (
	"fmt"
	"strings"
)

// Match records one rule that matched a scan label.
type Match struct {
	Pattern  string `json:"pattern"`
	Modality string `json:"modality"`
	DataType string `json:"dataType"`
}

// LabelMatches holds every rule match for a single scan label, in rule order.
type LabelMatches struct {
	Label   string  `json:"series_desc"`
	Matches []Match `json:"matches"`
}

// Matched reports whether at least one rule matched the label.
func (lm LabelMatches) Matched() bool {
	return len(lm.Matches) > 0
}

// Report is the result of analyzing a set of scan labels against a config.
type Report struct {
	Labels []LabelMatches `json:"labels"`
}

// Unmatched returns the labels no rule matched (coverage gaps), in report order.
func (r Report) Unmatched() []string {
	var out []string
	for _, lm := range r.Labels {
		if !lm.Matched() {
			out = append(out, lm.Label)
		}
	}
	return out
}

// Ambiguous returns the labels matched by more than one rule.
func (r Report) Ambiguous() []string {
	var out []string
	for _, lm := range r.Labels {
		if len(lm.Matches) > 1 {
			out = append(out, lm.Label)
		}
	}
	return out
}

// ReportRow is one line of the flat tabular form of a Report.
type ReportRow struct {
	Label    string
	Pattern  string
	Modality string
	DataType string
}

// Rows flattens the report: one row per match, and one row with empty match
// columns for each unmatched label.
func (r Report) Rows() []ReportRow {
	var rows []ReportRow
	for _, lm := range r.Labels {
		if !lm.Matched() {
			rows = append(rows, ReportRow{Label: lm.Label})
			continue
		}
		for _, m := range lm.Matches {
			rows = append(rows, ReportRow{
				Label:    lm.Label,
				Pattern:  m.Pattern,
				Modality: m.Modality,
				DataType: m.DataType,
			})
		}
	}
	return rows
}

// DiagnosticKind distinguishes duplicate-rule diagnostics.
type DiagnosticKind int

const (
	// ExactDuplicate means two or more rules share byte-identical pattern text.
	ExactDuplicate DiagnosticKind = iota
	// NearDuplicate means a pattern spells the same token in two cases.
	NearDuplicate
)

func (k DiagnosticKind) String() string {
	switch k {
	case ExactDuplicate:
		return "duplicate"
	case NearDuplicate:
		return "case-variant"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic is a duplicate or near-duplicate finding. It is advisory and is
// never applied automatically.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Pattern string         `json:"pattern"`
	// Indices are the description indices involved.
	Indices []int `json:"indices"`
	// Token, Variant and Replacement are set for NearDuplicate findings.
	Token       string `json:"token,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}

// String renders the diagnostic as a one-line message.
func (d Diagnostic) String() string {
	switch d.Kind {
	case ExactDuplicate:
		idx := make([]string, len(d.Indices))
		for i, n := range d.Indices {
			idx[i] = fmt.Sprint(n)
		}
		return fmt.Sprintf("Duplicate pattern found: %s (descriptions %s)", d.Pattern, strings.Join(idx, ", "))
	case NearDuplicate:
		return fmt.Sprintf("Consider combining %s and %s patterns using %s in description %d",
			d.Token, d.Variant, d.Replacement, d.firstIndex())
	default:
		return d.Pattern
	}
}

func (d Diagnostic) firstIndex() int {
	if len(d.Indices) == 0 {
		return -1
	}
	return d.Indices[0]
}
