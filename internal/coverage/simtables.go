package coverage

import "unsafe"

// SimHostTables is an in-memory HostTables backed by ordinary Go byte
// slices. It exists so tests and cmd/hostsim can script scenarios
// without a real sanitizer-coverage runtime; addresses are real Go heap
// addresses (taken via unsafe.Pointer), which satisfies spec.md §4.3's
// determinism requirement within one process run without requiring an
// actual host.
type SimHostTables struct {
	modules  []*simModule
	pctables [][]PCEntry
}

type simModule struct {
	counters []byte
	regions  []Region
}

// NewSimHostTables returns an empty table set.
func NewSimHostTables() *SimHostTables {
	return &SimHostTables{}
}

// AddModule registers a new counter module backed by counters, with
// enabled regions given as [start,stop) byte offsets into counters
// (declared order is preserved). It returns the module's index.
//
// The caller must keep a reference to counters for as long as the
// SimHostTables is in use — the module retains the slice itself so the
// backing array is never collected out from under a live address.
func (h *SimHostTables) AddModule(counters []byte, regionOffsets [][2]int) int {
	var base Address
	if len(counters) > 0 {
		base = Address(uintptr(unsafe.Pointer(&counters[0])))
	}
	regions := make([]Region, len(regionOffsets))
	for i, off := range regionOffsets {
		regions[i] = Region{Start: base + Address(off[0]), Stop: base + Address(off[1])}
	}
	h.modules = append(h.modules, &simModule{counters: counters, regions: regions})
	return len(h.modules) - 1
}

// AddFullModule registers counters as a single enabled region spanning
// the whole slice.
func (h *SimHostTables) AddFullModule(counters []byte) int {
	return h.AddModule(counters, [][2]int{{0, len(counters)}})
}

// AddPCTable registers a PC table and returns its index.
func (h *SimHostTables) AddPCTable(entries []PCEntry) int {
	h.pctables = append(h.pctables, entries)
	return len(h.pctables) - 1
}

// SetCounter sets the hit count at offset within moduleIdx's counters.
func (h *SimHostTables) SetCounter(moduleIdx, offset int, val byte) {
	h.modules[moduleIdx].counters[offset] = val
}

// Counter reads the hit count at offset within moduleIdx's counters.
func (h *SimHostTables) Counter(moduleIdx, offset int) byte {
	return h.modules[moduleIdx].counters[offset]
}

func (h *SimHostTables) NumModules() int  { return len(h.modules) }
func (h *SimHostTables) NumPCTables() int { return len(h.pctables) }

func (h *SimHostTables) ModuleRegions(moduleIdx int) []Region {
	return h.modules[moduleIdx].regions
}

func (h *SimHostTables) ReadByte(addr Address) byte {
	return *(*byte)(unsafe.Pointer(uintptr(addr))) //nolint:govet // intentional raw dereference, mirrors a real sancov bitmap read
}

func (h *SimHostTables) PCTableLen(pcTableIdx int) int {
	return len(h.pctables[pcTableIdx])
}

func (h *SimHostTables) PCTableEntry(pcTableIdx, edgeIdx int) PCEntry {
	return h.pctables[pcTableIdx][edgeIdx]
}
