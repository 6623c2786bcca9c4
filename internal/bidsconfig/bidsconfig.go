// Package bidsconfig reads and writes dcm2bids conversion configurations.
//
// Loading is deliberately lenient: a document that parses is always turned
// into a types.Config, with missing or mistyped fields represented as absent.
// Only an unavailable or unparseable source is an error; everything else is
// left for the pattern engine's validation to report.
package bidsconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bidsconv/internal/errors"
	"bidsconv/pkg/types"
)

// Format identifies the serialization of a configuration source.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatFromPath picks the format from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads the configuration at path.
func Load(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError("config file not found", path, errors.ConfigNotFound,
				errors.NewFileError("cannot read", path, errors.FileNotFound, err))
		}
		return nil, errors.NewConfigError("config file unreadable", path, errors.ConfigNotFound,
			errors.NewFileError("cannot read", path, errors.FileAccessDenied, err))
	}

	cfg, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, errors.NewConfigError("config file is malformed", path, errors.ConfigMalformed, err)
	}
	return cfg, nil
}

// Decode parses data in the given format into a Config.
func Decode(data []byte, format Format) (*types.Config, error) {
	var doc interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse yaml")
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "parse json")
		}
		// Reject trailing garbage after the top-level value.
		if dec.More() {
			return nil, fmt.Errorf("parse json: unexpected data after top-level object")
		}
	}

	top, ok := asMap(doc)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object")
	}
	return fromDocument(top), nil
}

func fromDocument(top map[string]interface{}) *types.Config {
	cfg := &types.Config{}
	if s, ok := top["searchMethod"].(string); ok {
		cfg.SearchMethod = types.StringPtr(s)
	}

	raw, present := top["descriptions"]
	list, isList := raw.([]interface{})
	if !present || !isList {
		return cfg
	}

	cfg.Descriptions = make([]types.Rule, 0, len(list))
	for _, item := range list {
		cfg.Descriptions = append(cfg.Descriptions, ruleFrom(item))
	}
	return cfg
}

func ruleFrom(item interface{}) types.Rule {
	var r types.Rule
	m, ok := asMap(item)
	if !ok {
		return r
	}
	if s, ok := m["dataType"].(string); ok {
		r.DataType = types.StringPtr(s)
	}
	if s, ok := m["modalityLabel"].(string); ok {
		r.ModalityLabel = types.StringPtr(s)
	}
	if c, ok := asMap(m["criteria"]); ok {
		r.Criteria = make(types.Criteria, len(c))
		for k, v := range c {
			r.Criteria[k] = normalize(v)
		}
	}
	return r
}

// asMap accepts both map shapes the JSON and YAML decoders produce.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize converts nested YAML maps so the value re-encodes as JSON, and
// JSON numbers to int64 or float64 so they stay numbers in YAML.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[interface{}]interface{}, map[string]interface{}:
		m, _ := asMap(val)
		for k, inner := range m {
			m[k] = normalize(inner)
		}
		return m
	case []interface{}:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	default:
		return v
	}
}

// Marshal serializes cfg with stable key order: searchMethod, descriptions,
// and per rule dataType, criteria, modalityLabel. Output ends in a newline.
func Marshal(cfg *types.Config, format Format) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, errors.Wrap(err, "marshal yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "marshal yaml")
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return nil, errors.Wrap(err, "marshal json")
		}
		return buf.Bytes(), nil
	}
}

// Save writes cfg to path in the format implied by its extension.
// It creates parent directories if they don't exist.
func Save(cfg *types.Config, path string) error {
	data, err := Marshal(cfg, FormatFromPath(path))
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError("failed to create config directory", dir, errors.FileCreateFailed, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileOperationFailed, err)
	}
	return nil
}
