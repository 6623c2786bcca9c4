package types

// Criteria maps criterion keys (SeriesDescription, ImageType, ...) to their
// configured values. Values are usually strings; other JSON values are kept
// so they survive a rewrite.
type Criteria map[string]interface{}

// SeriesDescription returns the SeriesDescription pattern and whether it is
// present as a string.
func (c Criteria) SeriesDescription() (string, bool) {
	v, ok := c[SeriesDescriptionKey].(string)
	return v, ok
}

// With returns a copy of c with key set to value.
func (c Criteria) With(key string, value interface{}) Criteria {
	out := make(Criteria, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}

// Rule is one description entry: a pattern over scan labels mapped to a BIDS
// data type and modality label. Nil fields were absent in the source.
type Rule struct {
	DataType      *string
	Criteria      Criteria
	ModalityLabel *string
}

// NewRule builds a complete rule matching SeriesDescription against pattern.
func NewRule(dataType, pattern, modalityLabel string) Rule {
	return Rule{
		DataType:      StringPtr(dataType),
		Criteria:      Criteria{SeriesDescriptionKey: pattern},
		ModalityLabel: StringPtr(modalityLabel),
	}
}

// Pattern returns the SeriesDescription pattern, or "" when absent.
func (r Rule) Pattern() string {
	p, _ := r.Criteria.SeriesDescription()
	return p
}

// HasCriteria reports whether the criteria key was present.
func (r Rule) HasCriteria() bool {
	return r.Criteria != nil
}

// DataTypeOr returns the data type, or "" when absent.
func (r Rule) DataTypeOr() string {
	if r.DataType == nil {
		return ""
	}
	return *r.DataType
}

// ModalityLabelOr returns the modality label, or "" when absent.
func (r Rule) ModalityLabelOr() string {
	if r.ModalityLabel == nil {
		return ""
	}
	return *r.ModalityLabel
}

// WithPattern returns a copy of r whose SeriesDescription is pattern.
// The receiver is not modified.
func (r Rule) WithPattern(pattern string) Rule {
	r.Criteria = r.Criteria.With(SeriesDescriptionKey, pattern)
	return r
}

// ruleDoc fixes the serialized key order: dataType, criteria, modalityLabel.
type ruleDoc struct {
	DataType      *string   `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Criteria      *Criteria `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	ModalityLabel *string   `json:"modalityLabel,omitempty" yaml:"modalityLabel,omitempty"`
}

func (r Rule) doc() ruleDoc {
	d := ruleDoc{DataType: r.DataType, ModalityLabel: r.ModalityLabel}
	if r.Criteria != nil {
		c := r.Criteria
		d.Criteria = &c
	}
	return d
}

// MarshalJSON emits dataType, criteria, modalityLabel in that order.
func (r Rule) MarshalJSON() ([]byte, error) {
	return marshalJSON(r.doc())
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (r Rule) MarshalYAML() (interface{}, error) {
	return r.doc(), nil
}
