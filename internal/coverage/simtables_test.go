package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimHostTablesRoundTrip(t *testing.T) {
	tables := NewSimHostTables()
	counters := make([]byte, 8)
	mi := tables.AddFullModule(counters)
	pi := tables.AddPCTable([]PCEntry{{PC: 0x1}, {PC: 0x2}, {PC: 0x3}, {PC: 0x4}, {PC: 0x5}, {PC: 0x6}, {PC: 0x7}, {PC: 0x8}})

	require.Equal(t, 1, tables.NumModules())
	require.Equal(t, 1, tables.NumPCTables())

	regions := tables.ModuleRegions(mi)
	require.Len(t, regions, 1)
	assert.Equal(t, 8, regions[0].Len())

	tables.SetCounter(mi, 3, 7)
	idx := 0
	for addr := regions[0].Start; addr < regions[0].Stop; addr++ {
		if idx == 3 {
			assert.Equal(t, byte(7), tables.ReadByte(addr))
		} else {
			assert.Equal(t, byte(0), tables.ReadByte(addr))
		}
		idx++
	}
	assert.Equal(t, 8, tables.PCTableLen(pi))
	assert.Equal(t, uintptr(0x4), tables.PCTableEntry(pi, 3).PC)
}

func TestRegionLenGuardsAgainstInverted(t *testing.T) {
	r := Region{Start: 10, Stop: 4}
	assert.Equal(t, 0, r.Len())
}
