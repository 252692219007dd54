// Package runcollector walks the host's coverage bitmap for one run of
// one target and folds it into a coarse/fine signature pair, per
// spec.md §4.3.
package runcollector

import (
	"nezha/internal/coverage"
	"nezha/internal/hashkit"
	"nezha/internal/registry"
)

// EdgeHit is one positive-hit record observed during a single run.
type EdgeHit struct {
	PC          uintptr
	CounterSlot coverage.Address
	Hits        byte
}

// RunObservation is everything recorded about one target's run within
// one batch.
type RunObservation struct {
	ExitCode int32
	Output   []byte
	Coarse   uint32
	Fine     uint32
	Edges    []EdgeHit
}

// Collect scans every section of target, in declared order, and
// produces the RunObservation for one run. keepEdges controls whether
// the raw edge list is retained (spec.md §3 marks it optional; callers
// that only need the signatures should pass false to bound memory).
func Collect(tables coverage.HostTables, sections []registry.Section, exitCode int32, output []byte, keepEdges bool) RunObservation {
	obs := RunObservation{ExitCode: exitCode, Output: output}

	for _, section := range sections {
		for i := 0; i < section.Width(); i++ {
			moduleIdx := section.ModuleStart + i
			pcTableIdx := section.PCTableStart + i
			scanModule(tables, moduleIdx, pcTableIdx, &obs, keepEdges)
		}
	}

	return obs
}

// scanModule walks one module's enabled regions in declared order and,
// within each region, ascending address order — the exact enumeration
// order the PC table is indexed by (spec.md §4.3's module.indexOf).
func scanModule(tables coverage.HostTables, moduleIdx, pcTableIdx int, obs *RunObservation, keepEdges bool) {
	edgeIdx := 0
	for _, region := range tables.ModuleRegions(moduleIdx) {
		for addr := region.Start; addr < region.Stop; addr++ {
			hits := tables.ReadByte(addr)
			if hits != 0 {
				pc := tables.PCTableEntry(pcTableIdx, edgeIdx).PC
				obs.Coarse += uint32(hits)
				obs.Fine = hashkit.HashInt(uint32(addr), obs.Fine)
				if keepEdges {
					obs.Edges = append(obs.Edges, EdgeHit{PC: pc, CounterSlot: addr, Hits: hits})
				}
			}
			edgeIdx++
		}
	}
}
