// Package registry records the coverage sections contributed by each
// target at registration time and assigns stable target indices
// (spec.md §4.2).
package registry

import (
	"errors"
	"fmt"

	"nezha/internal/coverage"
)

// Section is a contiguous slice into the host's module/PC-table arrays,
// spec.md §3: [ModuleStart, ModuleEnd) paired index-for-index with
// [PCTableStart, PCTableEnd).
type Section struct {
	ModuleStart  int
	ModuleEnd    int
	PCTableStart int
	PCTableEnd   int
}

// Width reports the number of modules (equivalently PC tables) this
// section spans.
func (s Section) Width() int { return s.ModuleEnd - s.ModuleStart }

// Target is one logically independent parser under test: an opaque id,
// the ordered sections registered for it, and its stable zero-based
// index.
type Target struct {
	ID       string
	Index    int
	Sections []Section
}

// snapshot captures the host's module/PC-table counts at the start of a
// registration, so EndRegistration can compute the delta.
type snapshot struct {
	modules  int
	pctables int
}

// ErrNoPendingRegistration is returned by EndRegistration when it is
// called without a matching BeginRegistration.
var ErrNoPendingRegistration = errors.New("registry: EndRegistration without a pending BeginRegistration")

// ErrEmptySection is returned when a registration would produce a
// zero-width section.
var ErrEmptySection = errors.New("registry: registration produced a zero-width section")

// ErrWidthMismatch is returned when the module delta and PC-table delta
// produced by a registration differ in width.
var ErrWidthMismatch = errors.New("registry: module and PC-table section widths differ")

// Registry owns Target records for the lifetime of the process. It
// borrows the host's coverage tables only to read their current size; it
// never mutates them.
type Registry struct {
	targets []*Target
	byID    map[string]int // id -> target index, first-seen wins
	pending *snapshot
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// BeginRegistration captures the host's current module/PC-table counts.
// A second call before EndRegistration replaces the pending snapshot;
// neither Registry nor the engine layer rejects it.
func (r *Registry) BeginRegistration(tables coverage.HostTables) {
	r.pending = &snapshot{modules: tables.NumModules(), pctables: tables.NumPCTables()}
}

// EndRegistration closes the section opened by the most recent
// BeginRegistration, asserting the module/PC-table delta is
// non-empty and of equal width, then appends that Section to the
// Target identified by id (creating a new Target on first sight of
// id). It returns the Target's stable index.
func (r *Registry) EndRegistration(tables coverage.HostTables, id string) (int, error) {
	if r.pending == nil {
		return 0, ErrNoPendingRegistration
	}
	pre := *r.pending
	r.pending = nil

	moduleEnd := tables.NumModules()
	pctableEnd := tables.NumPCTables()

	section := Section{
		ModuleStart:  pre.modules,
		ModuleEnd:    moduleEnd,
		PCTableStart: pre.pctables,
		PCTableEnd:   pctableEnd,
	}

	if section.Width() == 0 {
		return 0, ErrEmptySection
	}
	if (section.ModuleEnd - section.ModuleStart) != (section.PCTableEnd - section.PCTableStart) {
		return 0, ErrWidthMismatch
	}
	for i := 0; i < section.Width(); i++ {
		moduleEdges := regionEdgeCount(tables, section.ModuleStart+i)
		pcLen := tables.PCTableLen(section.PCTableStart + i)
		if moduleEdges != pcLen {
			return 0, fmt.Errorf("%w: module %d has %d edges, pctable %d has %d entries",
				ErrWidthMismatch, section.ModuleStart+i, moduleEdges, section.PCTableStart+i, pcLen)
		}
	}

	idx, ok := r.byID[id]
	if !ok {
		idx = len(r.targets)
		r.targets = append(r.targets, &Target{ID: id, Index: idx})
		r.byID[id] = idx
	}
	r.targets[idx].Sections = append(r.targets[idx].Sections, section)
	return idx, nil
}

func regionEdgeCount(tables coverage.HostTables, moduleIdx int) int {
	total := 0
	for _, region := range tables.ModuleRegions(moduleIdx) {
		total += region.Len()
	}
	return total
}

// Target returns the target at idx, or nil if idx is out of range.
func (r *Registry) Target(idx int) *Target {
	if idx < 0 || idx >= len(r.targets) {
		return nil
	}
	return r.targets[idx]
}

// Targets returns every registered target, in registration order.
func (r *Registry) Targets() []*Target {
	return r.targets
}

// Len returns the number of registered targets.
func (r *Registry) Len() int { return len(r.targets) }

// LastSection returns the most recently appended section for the target
// at idx — the section GetSectionInfo (spec.md §6) is expected to
// report, since it is always called as a diagnostic check immediately
// after the EndRegistration call that produced it.
func (r *Registry) LastSection(idx int) (Section, bool) {
	t := r.Target(idx)
	if t == nil || len(t.Sections) == 0 {
		return Section{}, false
	}
	return t.Sections[len(t.Sections)-1], true
}
