package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nezha/internal/batch"
	"nezha/internal/coverage"
)

// newOutDir returns a fresh directory with diffs/diffs-summary already
// created, standing in for the host's responsibility (spec.md §7) of
// making those directories creatable before any batch runs.
func newOutDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "diffs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "diffs-summary"), 0o755))
	return dir
}

// registerTarget registers id with a fresh 4-edge module/pctable pair
// and returns its index plus the module index to drive coverage from.
func registerTarget(t *testing.T, e *Engine, tables *coverage.SimHostTables, id string) (targetIdx, moduleIdx int) {
	t.Helper()
	require.NoError(t, e.BeginRegistration())
	mi := tables.AddFullModule(make([]byte, 4))
	tables.AddPCTable(make([]coverage.PCEntry, 4))
	idx, err := e.EndRegistration(id)
	require.NoError(t, err)
	return idx, mi
}

func runOne(t *testing.T, e *Engine, targetIdx int, exitCode int32, output []byte) {
	t.Helper()
	idx, err := e.StartRun()
	require.NoError(t, err)
	require.Equal(t, targetIdx, idx)
	require.NoError(t, e.EndRun(targetIdx, exitCode, output))
}

func TestAllRejectLeavesCumulativeStateUnchanged(t *testing.T) {
	tables := coverage.NewSimHostTables()
	e := New(tables, newOutDir(t), nil)

	t0, _ := registerTarget(t, e, tables, "a")
	t1, _ := registerTarget(t, e, tables, "b")
	t2, _ := registerTarget(t, e, tables, "c")

	require.NoError(t, e.StartBatch([]byte("input")))
	runOne(t, e, t0, 1, []byte(""))
	runOne(t, e, t1, 1, []byte(""))
	runOne(t, e, t2, 1, []byte(""))
	decision, err := e.EndBatch()
	require.NoError(t, err)

	assert.False(t, decision.Admitted)
	exitCodes, coarse, fine, joined := e.cumulative.Counts()
	assert.Zero(t, exitCodes)
	assert.Zero(t, coarse)
	assert.Zero(t, fine)
	assert.Zero(t, joined)
}

func TestAgreeingOutputsSuppressReportButGrowTupleHashes(t *testing.T) {
	tables := coverage.NewSimHostTables()
	outDir := newOutDir(t)
	e := New(tables, outDir, nil)

	t0, m0 := registerTarget(t, e, tables, "a")
	t1, m1 := registerTarget(t, e, tables, "b")

	require.NoError(t, e.StartBatch([]byte("42")))
	tables.SetCounter(m0, 0, 1)
	runOne(t, e, t0, 0, []byte("42"))
	tables.SetCounter(m1, 2, 1)
	runOne(t, e, t1, 0, []byte("42"))
	decision, err := e.EndBatch()
	require.NoError(t, err)

	assert.True(t, decision.Admitted)
	assert.False(t, decision.ShouldAttemptReport)
	_, _, _, joined := e.cumulative.Counts()
	assert.Equal(t, 1, joined)
	entries, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	assert.True(t, err != nil || len(entries) == 0)
}

func TestTrailingGarbageIsSuppressedByRuleSevenNotRuleOne(t *testing.T) {
	tables := coverage.NewSimHostTables()
	outDir := newOutDir(t)
	e := New(tables, outDir, nil)

	t0, m0 := registerTarget(t, e, tables, "a")
	t1, m1 := registerTarget(t, e, tables, "b")

	require.NoError(t, e.StartBatch([]byte("123 xyz")))
	tables.SetCounter(m0, 0, 1)
	runOne(t, e, t0, 0, []byte("123"))
	tables.SetCounter(m1, 1, 1)
	runOne(t, e, t1, 0, []byte("123xyz"))
	_, err := e.EndBatch()
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	assert.True(t, err != nil || len(entries) == 0)
}

func TestAddsCommaIsSuppressed(t *testing.T) {
	tables := coverage.NewSimHostTables()
	outDir := newOutDir(t)
	e := New(tables, outDir, nil)

	t0, m0 := registerTarget(t, e, tables, "a")
	t1, m1 := registerTarget(t, e, tables, "b")

	require.NoError(t, e.StartBatch([]byte("[1 2]")))
	tables.SetCounter(m0, 0, 1)
	runOne(t, e, t0, 0, []byte("[1,2]"))
	tables.SetCounter(m1, 1, 1)
	runOne(t, e, t1, 0, []byte("[1 2]"))
	_, err := e.EndBatch()
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	assert.True(t, err != nil || len(entries) == 0)
}

func TestUnclassifiedDivergenceWritesBothArtifacts(t *testing.T) {
	tables := coverage.NewSimHostTables()
	outDir := newOutDir(t)
	e := New(tables, outDir, nil)

	t0, m0 := registerTarget(t, e, tables, "a")
	t1, m1 := registerTarget(t, e, tables, "b")

	require.NoError(t, e.StartBatch([]byte(`{"a":1}`)))
	tables.SetCounter(m0, 0, 1)
	runOne(t, e, t0, 0, []byte(`{"a":1}`))
	tables.SetCounter(m1, 1, 1)
	runOne(t, e, t1, 0, []byte(`{"A":1}`))
	decision, err := e.EndBatch()
	require.NoError(t, err)

	assert.True(t, decision.ShouldAttemptReport)
	diffs, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
	// diffs-summary holds the .txt summary and its .json sidecar.
	summaries, err := os.ReadDir(filepath.Join(outDir, "diffs-summary"))
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestUnicodeEscapeInInputIsSuppressedRegardlessOfOutputs(t *testing.T) {
	tables := coverage.NewSimHostTables()
	outDir := newOutDir(t)
	e := New(tables, outDir, nil)

	t0, m0 := registerTarget(t, e, tables, "a")
	t1, m1 := registerTarget(t, e, tables, "b")

	input := []byte{'"', '\\', 'u', '0', '0', '4', '1', '"'}
	require.NoError(t, e.StartBatch(input))
	tables.SetCounter(m0, 0, 1)
	runOne(t, e, t0, 0, []byte("A"))
	tables.SetCounter(m1, 1, 1)
	runOne(t, e, t1, 0, []byte("B"))
	_, err := e.EndBatch()
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(outDir, "diffs"))
	assert.True(t, err != nil || len(entries) == 0)
}

func TestEndRunWithWrongTargetIsContractViolation(t *testing.T) {
	tables := coverage.NewSimHostTables()
	e := New(tables, newOutDir(t), nil)
	t0, _ := registerTarget(t, e, tables, "a")
	t1, _ := registerTarget(t, e, tables, "b")
	_ = t1

	require.NoError(t, e.StartBatch([]byte("x")))
	_, err := e.StartRun()
	require.NoError(t, err)

	err = e.EndRun(t0+1, 0, nil)
	var violation *ContractViolation
	assert.ErrorAs(t, err, &violation)
}

func TestEmptyTargetBatchIsANoOp(t *testing.T) {
	tables := coverage.NewSimHostTables()
	e := New(tables, newOutDir(t), nil)

	require.NoError(t, e.StartBatch([]byte("x")))
	decision, err := e.EndBatch()
	require.NoError(t, err)
	assert.Equal(t, batch.Decision{}, decision)
}
