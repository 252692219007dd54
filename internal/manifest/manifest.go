// Package manifest loads an optional targets.yaml describing display
// names for registered targets and per-class reporting overrides.
package manifest

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TargetEntry maps a registered target id to a human-readable name for
// Reporter's summary rendering.
type TargetEntry struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// ClassOverride lets an operator re-enable reporting for a normally-
// suppressed classifier class without touching code.
type ClassOverride struct {
	Class    string `yaml:"class"`
	Suppress bool   `yaml:"suppress"`
}

// Manifest is the parsed shape of targets.yaml.
type Manifest struct {
	Targets   []TargetEntry   `yaml:"targets"`
	Overrides []ClassOverride `yaml:"overrides"`
}

// Load reads and parses path. A missing file is not an error — it
// returns an empty Manifest, since targets.yaml is optional.
func Load(path string, logger *zap.Logger) (*Manifest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		logger.Error("failed to read targets manifest", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		logger.Error("failed to parse targets manifest", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return &m, nil
}

// DisplayName returns the configured display name for id, falling back
// to id itself when the manifest has no entry for it (spec.md §4.6's
// naming falls back to the raw target id).
func (m *Manifest) DisplayName(id string) string {
	if m == nil {
		return id
	}
	for _, t := range m.Targets {
		if t.ID == id {
			return t.DisplayName
		}
	}
	return id
}

// IsSuppressed reports whether classTag should be suppressed, applying
// the manifest's override if one is configured. A non-empty classTag
// is suppressed by default (spec.md §4.4 step 5); an override with
// suppress=false re-enables reporting for that class.
func (m *Manifest) IsSuppressed(classTag string) bool {
	if classTag == "" {
		return false
	}
	if m == nil {
		return true
	}
	for _, o := range m.Overrides {
		if o.Class == classTag {
			return o.Suppress
		}
	}
	return true
}
