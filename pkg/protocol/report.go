package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrReportNotFound is returned when the report file does not exist.
	ErrReportNotFound = errors.New("report file not found")
	// ErrReportNotObject is returned when the report is not a JSON object.
	ErrReportNotObject = errors.New("report is not a JSON object")
)

// Section is one top-level report section. Leaf values are untyped.
type Section map[string]any

// Text returns the string value at key and whether it was a string.
func (s Section) Text(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Report is the tool-authored outcome document. A section that is missing
// or not an object is nil; it never invalidates the rest of the report.
type Report struct {
	ProtocolVersion string  `json:"protocol_version,omitempty"`
	Execution       Section `json:"execution,omitempty"`
	CognitiveState  Section `json:"cognitive_state,omitempty"`
	Artifacts       Section `json:"artifacts,omitempty"`
}

// ParseReport reads and decodes the report at path.
func ParseReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrReportNotFound)
		}
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("report %s is not valid JSON: %w", path, err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrReportNotObject)
	}
	return reportFromDoc(doc), nil
}

// reportFromDoc keeps each section independently, dropping any that is not
// an object.
func reportFromDoc(doc map[string]any) *Report {
	r := &Report{}
	if pv, ok := doc["protocol_version"].(string); ok {
		r.ProtocolVersion = pv
	}
	r.Execution = section(doc, "execution")
	r.CognitiveState = section(doc, "cognitive_state")
	r.Artifacts = section(doc, "artifacts")
	return r
}

func section(doc map[string]any, key string) Section {
	if m, ok := doc[key].(map[string]any); ok {
		return Section(m)
	}
	return nil
}
