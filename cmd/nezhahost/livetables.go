package main

/*
#include <stdint.h>
#include <stddef.h>

extern void goRegisterModule(char *start, char *end);
extern void goRegisterPCTable(uintptr_t *start, uintptr_t *end);

// Called by the sanitizer-coverage runtime once per instrumented
// module, in the manner of morehouse-smite's counter_region tracking —
// except the region bookkeeping itself lives on the Go side so the
// registry can observe module/PC-table deltas directly.
__attribute__((weak))
void __sanitizer_cov_8bit_counters_init(char *start, char *end) {
    goRegisterModule(start, end);
}

__attribute__((weak))
void __sanitizer_cov_pcs_init(const uintptr_t *pcs_beg, const uintptr_t *pcs_end) {
    goRegisterPCTable((uintptr_t *)pcs_beg, (uintptr_t *)pcs_end);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"nezha/internal/coverage"
)

// liveModule is one sanitizer-coverage counter array, registered by a
// single __sanitizer_cov_8bit_counters_init call.
type liveModule struct {
	start, stop coverage.Address
}

// LiveHostTables is the cgo-backed coverage.HostTables implementation:
// its modules and PC tables are populated entirely by the weak
// sancov callbacks above, never allocated by this module itself.
type LiveHostTables struct {
	mu       sync.Mutex
	modules  []liveModule
	pctables [][]coverage.PCEntry
}

var liveTables = &LiveHostTables{}

func (h *LiveHostTables) registerModule(start, end unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modules = append(h.modules, liveModule{
		start: coverage.Address(uintptr(start)),
		stop:  coverage.Address(uintptr(end)),
	})
}

func (h *LiveHostTables) registerPCTable(start, end unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wordSize := unsafe.Sizeof(uintptr(0))
	// libFuzzer's PC table is an array of {PC, Flags} pairs; we only
	// retain PC (spec.md §4.3: the PC table never feeds the fine
	// signature, it is carried for post-mortem inspection only).
	n := (uintptr(end) - uintptr(start)) / (wordSize * 2)
	entries := make([]coverage.PCEntry, n)
	base := uintptr(start)
	for i := range entries {
		wordPtr := (*uintptr)(unsafe.Pointer(base + uintptr(i)*wordSize*2))
		entries[i] = coverage.PCEntry{PC: *wordPtr}
	}
	h.pctables = append(h.pctables, entries)
}

func (h *LiveHostTables) NumModules() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.modules)
}

func (h *LiveHostTables) NumPCTables() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pctables)
}

func (h *LiveHostTables) ModuleRegions(moduleIdx int) []coverage.Region {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.modules[moduleIdx]
	return []coverage.Region{{Start: m.start, Stop: m.stop}}
}

func (h *LiveHostTables) ReadByte(addr coverage.Address) byte {
	return *(*byte)(unsafe.Pointer(uintptr(addr))) //nolint:govet // raw sancov bitmap dereference
}

func (h *LiveHostTables) PCTableLen(pcTableIdx int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pctables[pcTableIdx])
}

func (h *LiveHostTables) PCTableEntry(pcTableIdx, edgeIdx int) coverage.PCEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pctables[pcTableIdx][edgeIdx]
}

//export goRegisterModule
func goRegisterModule(start, end *C.char) {
	liveTables.registerModule(unsafe.Pointer(start), unsafe.Pointer(end))
}

//export goRegisterPCTable
func goRegisterPCTable(start, end *C.uintptr_t) {
	liveTables.registerPCTable(unsafe.Pointer(start), unsafe.Pointer(end))
}
