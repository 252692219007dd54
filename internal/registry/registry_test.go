package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nezha/internal/coverage"
	"nezha/internal/registry"
	"nezha/internal/runcollector"
)

func addModulePCPair(tables *coverage.SimHostTables, edges int) {
	counters := make([]byte, edges)
	tables.AddFullModule(counters)
	entries := make([]coverage.PCEntry, edges)
	tables.AddPCTable(entries)
}

// addModulePCPairRegion registers [start,stop) of the shared counters
// array as its own module/PC-table pair, so callers can carve one
// backing array into several sections without duplicating memory.
func addModulePCPairRegion(tables *coverage.SimHostTables, counters []byte, start, stop int) {
	tables.AddModule(counters, [][2]int{{start, stop}})
	tables.AddPCTable(make([]coverage.PCEntry, stop-start))
}

func TestEndRegistrationWithoutBeginIsAnError(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()
	_, err := r.EndRegistration(tables, "target-a")
	assert.ErrorIs(t, err, registry.ErrNoPendingRegistration)
}

func TestSingleSectionRegistration(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	addModulePCPair(tables, 4)
	idx, err := r.EndRegistration(tables, "target-a")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	target := r.Target(idx)
	require.NotNil(t, target)
	assert.Equal(t, "target-a", target.ID)
	require.Len(t, target.Sections, 1)
	assert.Equal(t, 1, target.Sections[0].Width(), "one module/PC-table pair, however many edges it has")
}

func TestRepeatIDAppendsSectionToSameTarget(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	addModulePCPair(tables, 4)
	idx1, err := r.EndRegistration(tables, "target-a")
	require.NoError(t, err)

	r.BeginRegistration(tables)
	addModulePCPair(tables, 2)
	idx2, err := r.EndRegistration(tables, "target-a")
	require.NoError(t, err)

	assert.Equal(t, idx1, idx2, "repeat id must return the same stable target index")
	assert.Len(t, r.Target(idx1).Sections, 2)
	assert.Equal(t, 1, r.Len(), "repeat id must not create a second target")
}

func TestDistinctIDsGetDistinctIndices(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	addModulePCPair(tables, 2)
	idxA, err := r.EndRegistration(tables, "target-a")
	require.NoError(t, err)

	r.BeginRegistration(tables)
	addModulePCPair(tables, 2)
	idxB, err := r.EndRegistration(tables, "target-b")
	require.NoError(t, err)

	assert.NotEqual(t, idxA, idxB)
	assert.Equal(t, 2, r.Len())
}

func TestEmptySectionIsAnError(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	// no module/pctable added: zero-width delta
	_, err := r.EndRegistration(tables, "target-a")
	assert.ErrorIs(t, err, registry.ErrEmptySection)
}

func TestWidthMismatchIsAnError(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	counters := make([]byte, 4)
	tables.AddFullModule(counters)
	// deliberately register only one pctable entry while the module has 4 edges
	tables.AddPCTable([]coverage.PCEntry{{PC: 1}})
	_, err := r.EndRegistration(tables, "target-a")
	assert.ErrorIs(t, err, registry.ErrWidthMismatch)
}

func TestSectionAggregationI7(t *testing.T) {
	// I7: a target registered as one 6-wide section and a target
	// registered as two adjacent sections (4-wide + 2-wide) carved out
	// of the SAME backing counter array must yield identical coarse and
	// fine signatures once fed through runcollector.Collect — not just
	// matching widths, which two unrelated arrays could satisfy by
	// coincidence without ever proving the addresses driving Fine agree.
	r := registry.New()
	tables := coverage.NewSimHostTables()
	counters := make([]byte, 6)

	r.BeginRegistration(tables)
	addModulePCPairRegion(tables, counters, 0, 6)
	idxWhole, err := r.EndRegistration(tables, "whole")
	require.NoError(t, err)

	r.BeginRegistration(tables)
	addModulePCPairRegion(tables, counters, 0, 4)
	_, err = r.EndRegistration(tables, "split")
	require.NoError(t, err)
	r.BeginRegistration(tables)
	addModulePCPairRegion(tables, counters, 4, 6)
	idxSplit, err := r.EndRegistration(tables, "split")
	require.NoError(t, err)

	counters[1] = 3
	counters[4] = 1 // offset 4 overall == offset 0 of the second split section

	wholeObs := runcollector.Collect(tables, r.Target(idxWhole).Sections, 0, nil, false)
	splitObs := runcollector.Collect(tables, r.Target(idxSplit).Sections, 0, nil, false)

	assert.Equal(t, wholeObs.Coarse, splitObs.Coarse)
	assert.Equal(t, wholeObs.Fine, splitObs.Fine)
}

func TestLastSectionReflectsMostRecentRegistration(t *testing.T) {
	r := registry.New()
	tables := coverage.NewSimHostTables()

	r.BeginRegistration(tables)
	addModulePCPair(tables, 3)
	idx, err := r.EndRegistration(tables, "target-a")
	require.NoError(t, err)

	r.BeginRegistration(tables)
	addModulePCPair(tables, 5)
	_, err = r.EndRegistration(tables, "target-a")
	require.NoError(t, err)

	last, ok := r.LastSection(idx)
	require.True(t, ok)
	assert.Equal(t, registry.Section{ModuleStart: 1, ModuleEnd: 2, PCTableStart: 1, PCTableEnd: 2}, last)
}
