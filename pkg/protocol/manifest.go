package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned when a document fails ValidateManifest.
var ErrInvalidManifest = errors.New("invalid task manifest")

// ExecutionContext says where a task runs.
type ExecutionContext struct {
	WorktreePath string `json:"worktree_path" yaml:"worktree_path"`
}

// Manifest is the orchestrator-authored task description.
type Manifest struct {
	ProtocolVersion  string           `json:"protocol_version" yaml:"protocol_version"`
	TaskID           string           `json:"task_id" yaml:"task_id"`
	Context          map[string]any   `json:"context" yaml:"context"`
	ExecutionContext ExecutionContext `json:"execution_context" yaml:"execution_context"`
}

// ValidateManifest reports whether v is a structurally valid manifest: an
// object with protocol_version equal to Version, a non-empty string
// task_id, an object context and an execution_context object holding a
// string worktree_path. Anything else, including non-object input, is
// false. There is no partial acceptance.
func ValidateManifest(v any) bool {
	doc, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if pv, ok := doc["protocol_version"].(string); !ok || pv != Version {
		return false
	}
	if id, ok := doc["task_id"].(string); !ok || id == "" {
		return false
	}
	if _, ok := doc["context"].(map[string]any); !ok {
		return false
	}
	ec, ok := doc["execution_context"].(map[string]any)
	if !ok {
		return false
	}
	if _, ok := ec["worktree_path"].(string); !ok {
		return false
	}
	return true
}

// DecodeManifest validates a decoded document and converts it to a
// Manifest.
func DecodeManifest(v any) (*Manifest, error) {
	if !ValidateManifest(v) {
		return nil, ErrInvalidManifest
	}
	doc := v.(map[string]any)
	ec := doc["execution_context"].(map[string]any)
	return &Manifest{
		ProtocolVersion: doc["protocol_version"].(string),
		TaskID:          doc["task_id"].(string),
		Context:         doc["context"].(map[string]any),
		ExecutionContext: ExecutionContext{
			WorktreePath: ec["worktree_path"].(string),
		},
	}, nil
}

// ParseManifest decodes data as JSON, or as YAML when yamlInput is set,
// and validates it.
func ParseManifest(data []byte, yamlInput bool) (*Manifest, error) {
	var v any
	if yamlInput {
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	} else if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return DecodeManifest(v)
}

// LoadManifest reads a manifest file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data, IsYAMLPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// IsYAMLPath reports whether path has a YAML extension.
func IsYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Marshal renders the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
