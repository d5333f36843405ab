// Package config reads workflow snapshot files and command-line assignments.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/callflow/pkg/models"
	"gopkg.in/yaml.v3"
)

var ErrInvalidAssignment = errors.New("assignment must look like name=value")

// LoadSnapshot reads a workflow snapshot from a JSON or YAML file. The format is
// chosen from the extension; anything but .yaml and .yml is read as JSON.
func LoadSnapshot(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", path, err)
	}

	return ParseSnapshot(data, filepath.Ext(path))
}

// ParseSnapshot decodes a snapshot. YAML documents are converted to JSON first so
// node configs decode through the same typed path.
func ParseSnapshot(data []byte, ext string) (*models.Snapshot, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var document map[string]any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to parse YAML snapshot: %w", err)
		}

		converted, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML snapshot: %w", err)
		}

		data = converted
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	if snapshot.SchemaVersion == "" {
		snapshot.SchemaVersion = models.SnapshotSchemaVersion
	}

	return &snapshot, nil
}

// ParseAssignments turns name=value pairs into a map. Values are read as YAML
// scalars, so numbers and booleans keep their type.
func ParseAssignments(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")

		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssignment, pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}

		values[name] = value
	}

	return values, nil
}
