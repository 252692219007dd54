package runcollector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nezha/internal/coverage"
	"nezha/internal/registry"
)

func sectionForWholeModule(tables *coverage.SimHostTables, moduleIdx, pcTableIdx int) registry.Section {
	return registry.Section{
		ModuleStart:  moduleIdx,
		ModuleEnd:    moduleIdx + 1,
		PCTableStart: pcTableIdx,
		PCTableEnd:   pcTableIdx + 1,
	}
}

func TestCollectAccumulatesCoarseAsSumOfHits(t *testing.T) {
	tables := coverage.NewSimHostTables()
	counters := make([]byte, 4)
	mi := tables.AddFullModule(counters)
	pi := tables.AddPCTable([]coverage.PCEntry{{PC: 1}, {PC: 2}, {PC: 3}, {PC: 4}})

	tables.SetCounter(mi, 0, 3)
	tables.SetCounter(mi, 2, 5)

	obs := Collect(tables, []registry.Section{sectionForWholeModule(tables, mi, pi)}, 0, nil, true)
	assert.Equal(t, uint32(8), obs.Coarse)
	require.Len(t, obs.Edges, 2)
	assert.Equal(t, uintptr(1), obs.Edges[0].PC)
	assert.Equal(t, uintptr(3), obs.Edges[1].PC)
}

func TestCoarseFineSeparationI6(t *testing.T) {
	tables := coverage.NewSimHostTables()
	counters := make([]byte, 4)
	mi := tables.AddFullModule(counters)
	pi := tables.AddPCTable([]coverage.PCEntry{{PC: 1}, {PC: 2}, {PC: 3}, {PC: 4}})
	section := sectionForWholeModule(tables, mi, pi)

	tables.SetCounter(mi, 1, 1)
	tables.SetCounter(mi, 3, 1)
	base := Collect(tables, []registry.Section{section}, 0, nil, false)

	// Bump hit counts without changing which edges fired: coarse moves, fine does not.
	tables.SetCounter(mi, 1, 9)
	tables.SetCounter(mi, 3, 9)
	sameEdgesMoreHits := Collect(tables, []registry.Section{section}, 0, nil, false)
	assert.NotEqual(t, base.Coarse, sameEdgesMoreHits.Coarse)
	assert.Equal(t, base.Fine, sameEdgesMoreHits.Fine)

	// Fire one additional edge: fine must change.
	tables.SetCounter(mi, 2, 1)
	moreEdges := Collect(tables, []registry.Section{section}, 0, nil, false)
	assert.NotEqual(t, sameEdgesMoreHits.Fine, moreEdges.Fine)
}

func TestCollectDeterministicI1(t *testing.T) {
	tables := coverage.NewSimHostTables()
	counters := make([]byte, 6)
	mi := tables.AddFullModule(counters)
	pi := tables.AddPCTable(make([]coverage.PCEntry, 6))
	section := sectionForWholeModule(tables, mi, pi)

	tables.SetCounter(mi, 0, 2)
	tables.SetCounter(mi, 5, 4)

	first := Collect(tables, []registry.Section{section}, 7, []byte("out"), true)
	second := Collect(tables, []registry.Section{section}, 7, []byte("out"), true)

	assert.Equal(t, first.Coarse, second.Coarse)
	assert.Equal(t, first.Fine, second.Fine)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestCollectSectionAggregationI7(t *testing.T) {
	// The same underlying counter array, read either as one 6-wide
	// module or as two modules (4-wide + 2-wide) carved out of the
	// identical backing bytes, must produce identical coarse AND fine
	// signatures — the addresses read are literally the same, so I7
	// cannot be satisfied by coincidence the way two separate arrays
	// could appear to agree on Coarse alone.
	tables := coverage.NewSimHostTables()
	counters := make([]byte, 6)

	wholeMi := tables.AddFullModule(counters)
	wholePi := tables.AddPCTable(make([]coverage.PCEntry, 6))

	splitMi1 := tables.AddModule(counters, [][2]int{{0, 4}})
	splitPi1 := tables.AddPCTable(make([]coverage.PCEntry, 4))
	splitMi2 := tables.AddModule(counters, [][2]int{{4, 6}})
	splitPi2 := tables.AddPCTable(make([]coverage.PCEntry, 2))

	tables.SetCounter(wholeMi, 1, 3)
	tables.SetCounter(wholeMi, 4, 1) // offset 4 overall == offset 0 of the second split module

	wholeObs := Collect(tables, []registry.Section{sectionForWholeModule(tables, wholeMi, wholePi)}, 0, nil, false)

	sections := []registry.Section{
		sectionForWholeModule(tables, splitMi1, splitPi1),
		sectionForWholeModule(tables, splitMi2, splitPi2),
	}
	splitObs := Collect(tables, sections, 0, nil, false)

	assert.Equal(t, wholeObs.Coarse, splitObs.Coarse)
	assert.Equal(t, wholeObs.Fine, splitObs.Fine)
}
