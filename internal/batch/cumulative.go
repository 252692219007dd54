package batch

// CumulativeState holds the process-wide novelty sets of spec.md §3.
// Every set only ever grows for the lifetime of the process (I2); it is
// never persisted across process lifetimes (spec.md §1 Non-goals).
type CumulativeState struct {
	exitCodeHashes    map[uint32]struct{}
	coarseTupleHashes map[uint32]struct{}
	fineTupleHashes   map[uint32]struct{}
	joinedTupleHashes map[uint32]struct{}
}

// NewCumulativeState returns an empty CumulativeState.
func NewCumulativeState() *CumulativeState {
	return &CumulativeState{
		exitCodeHashes:    make(map[uint32]struct{}),
		coarseTupleHashes: make(map[uint32]struct{}),
		fineTupleHashes:   make(map[uint32]struct{}),
		joinedTupleHashes: make(map[uint32]struct{}),
	}
}

// insert adds h to set and reports whether h was not already present.
func insert(set map[uint32]struct{}, h uint32) bool {
	if _, ok := set[h]; ok {
		return false
	}
	set[h] = struct{}{}
	return true
}

// InsertExitCodeHash records a new exit-code-vector hash and reports
// whether it was new.
func (c *CumulativeState) InsertExitCodeHash(h uint32) bool { return insert(c.exitCodeHashes, h) }

// InsertCoarseTupleHash records a new coarse-vector hash and reports
// whether it was new.
func (c *CumulativeState) InsertCoarseTupleHash(h uint32) bool { return insert(c.coarseTupleHashes, h) }

// InsertFineTupleHash records a new fine-vector hash and reports
// whether it was new.
func (c *CumulativeState) InsertFineTupleHash(h uint32) bool { return insert(c.fineTupleHashes, h) }

// InsertJoinedTupleHash records a new joined-tuple hash and reports
// whether it was new.
func (c *CumulativeState) InsertJoinedTupleHash(h uint32) bool { return insert(c.joinedTupleHashes, h) }

// NezhaCoverage reports the cardinality of the coarse and fine
// cumulative sets, mirroring the HostFacade's NezhaCoverage query
// (spec.md §6).
func (c *CumulativeState) NezhaCoverage() (coarseCount, fineCount int) {
	return len(c.coarseTupleHashes), len(c.fineTupleHashes)
}

// Counts exposes every set's cardinality, mostly useful for tests
// asserting I2/I3.
func (c *CumulativeState) Counts() (exitCodes, coarse, fine, joined int) {
	return len(c.exitCodeHashes), len(c.coarseTupleHashes), len(c.fineTupleHashes), len(c.joinedTupleHashes)
}
