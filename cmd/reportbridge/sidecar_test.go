package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSidecarReturnsNilWithoutError(t *testing.T) {
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "diff-1-1-1-1-abc.txt")

	sidecar, err := readSidecar(summaryPath)
	require.NoError(t, err)
	assert.Nil(t, sidecar)
}

func TestReadSidecarParsesJSON(t *testing.T) {
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "diff-1-1-1-1-abc.txt")
	sidecarPath := filepath.Join(dir, "diff-1-1-1-1-abc.json")
	body := `{"distinct_out":2,"h_exit":1,"h_coarse":2,"h_fine":3,"input_sha1":"abc","targets":[{"ID":"a","ExitCode":0,"Output":"eA=="}]}`
	require.NoError(t, os.WriteFile(sidecarPath, []byte(body), 0o644))

	sidecar, err := readSidecar(summaryPath)
	require.NoError(t, err)
	require.NotNil(t, sidecar)
	assert.Equal(t, 2, sidecar.DistinctOut)
	assert.Equal(t, uint32(3), sidecar.HFine)
	require.Len(t, sidecar.Targets, 1)
	assert.Equal(t, "a", sidecar.Targets[0].ID)
}
