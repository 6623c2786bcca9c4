package types

import (
	"bytes"
	"encoding/json"
)

// SearchMethodRegex is the only search method the pattern engine supports.
const SearchMethodRegex = "re"

// SeriesDescriptionKey is the criteria key the pattern engine interprets.
const SeriesDescriptionKey = "SeriesDescription"

// Config is a dcm2bids-style conversion configuration: a search method and an
// ordered list of description rules.
//
// Fields are optional so a loaded configuration can represent missing keys
// instead of failing to load. A nil SearchMethod means the key was absent.
// A nil Descriptions means the key was absent; an empty non-nil slice means
// it was present but empty. Treat a Config as read-only once built.
type Config struct {
	SearchMethod *string
	Descriptions []Rule
}

// NewConfig builds a fully specified configuration with the regex search method.
func NewConfig(rules ...Rule) *Config {
	if rules == nil {
		rules = []Rule{}
	}
	return &Config{
		SearchMethod: StringPtr(SearchMethodRegex),
		Descriptions: rules,
	}
}

// HasSearchMethod reports whether the searchMethod key was present.
func (c *Config) HasSearchMethod() bool {
	return c != nil && c.SearchMethod != nil
}

// HasDescriptions reports whether the descriptions key was present.
func (c *Config) HasDescriptions() bool {
	return c != nil && c.Descriptions != nil
}

// Rules returns the description rules, or nil for a nil config.
func (c *Config) Rules() []Rule {
	if c == nil {
		return nil
	}
	return c.Descriptions
}

// configDoc fixes the key order of the serialized form: searchMethod first,
// then descriptions.
type configDoc struct {
	SearchMethod *string `json:"searchMethod,omitempty" yaml:"searchMethod,omitempty"`
	Descriptions *[]Rule `json:"descriptions,omitempty" yaml:"descriptions,omitempty"`
}

func (c *Config) doc() configDoc {
	d := configDoc{SearchMethod: c.SearchMethod}
	if c.Descriptions != nil {
		rules := c.Descriptions
		d.Descriptions = &rules
	}
	return d
}

// MarshalJSON emits searchMethod then descriptions. Absent keys stay absent.
func (c *Config) MarshalJSON() ([]byte, error) {
	return marshalJSON(c.doc())
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (c *Config) MarshalYAML() (interface{}, error) {
	return c.doc(), nil
}

// marshalJSON encodes v without HTML escaping, so patterns such as (?<=T1)
// are written as typed.
func marshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
