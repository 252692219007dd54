package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
targets:
  - id: "parser-a"
    display_name: "RapidJSON"
overrides:
  - class: "adds-comma"
    suppress: false
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesTargetsAndOverrides(t *testing.T) {
	path := writeManifest(t, sample)
	m, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "RapidJSON", m.DisplayName("parser-a"))
	assert.Equal(t, "parser-b", m.DisplayName("parser-b"))
}

func TestLoadMissingFileReturnsEmptyManifest(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "anything", m.DisplayName("anything"))
	assert.True(t, m.IsSuppressed("adds-comma"))
}

func TestOverrideReEnablesReportingForClass(t *testing.T) {
	path := writeManifest(t, sample)
	m, err := Load(path, nil)
	require.NoError(t, err)

	assert.False(t, m.IsSuppressed("adds-comma"))
	assert.True(t, m.IsSuppressed("removes-comma"))
}

func TestEmptyClassTagIsNeverSuppressed(t *testing.T) {
	var m *Manifest
	assert.False(t, m.IsSuppressed(""))
	assert.Equal(t, "x", m.DisplayName("x"))
}
