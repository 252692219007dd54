// Package batch implements the per-batch admission filter, cumulative
// novelty bookkeeping, and the interestingness decision of spec.md
// §4.4. It deliberately stops short of classification and reporting —
// those are internal/classify and internal/report, wired together by
// internal/engine — so this package stays a pure, easily-tested
// decision function.
package batch

import (
	"errors"

	"nezha/internal/classify"
	"nezha/internal/hashkit"
	"nezha/internal/runcollector"
)

// BatchResult holds everything the host has told the core about one
// input across all targets, spec.md §3. It is (re)allocated at
// StartBatch and is only valid until the following StartBatch.
type BatchResult struct {
	Input     []byte
	ExitCodes []int32
	Outputs   [][]byte
	Coarse    []uint32
	Fine      []uint32
	Edges     [][]runcollector.EdgeHit
}

// ErrNoActiveBatch is returned by RecordRun when StartBatch has not
// been called yet.
var ErrNoActiveBatch = errors.New("batch: no active batch")

// ErrTargetIndexOutOfRange is returned by RecordRun when targetIdx does
// not address a slot allocated by StartBatch.
var ErrTargetIndexOutOfRange = errors.New("batch: target index out of range")

// Aggregator drives one BatchResult through admission, novelty, and the
// reporting pre-check against a single, process-wide CumulativeState.
type Aggregator struct {
	cumulative *CumulativeState
	result     *BatchResult
}

// NewAggregator returns an Aggregator backed by cumulative.
func NewAggregator(cumulative *CumulativeState) *Aggregator {
	return &Aggregator{cumulative: cumulative}
}

// StartBatch allocates a fresh, zero-initialized BatchResult of the
// given target count and stashes input as its immutable input bytes.
func (a *Aggregator) StartBatch(input []byte, targetCount int) *BatchResult {
	a.result = &BatchResult{
		Input:     input,
		ExitCodes: make([]int32, targetCount),
		Outputs:   make([][]byte, targetCount),
		Coarse:    make([]uint32, targetCount),
		Fine:      make([]uint32, targetCount),
		Edges:     make([][]runcollector.EdgeHit, targetCount),
	}
	return a.result
}

// Result returns the BatchResult currently being accumulated, or nil.
func (a *Aggregator) Result() *BatchResult { return a.result }

// RecordRun commits one target's RunObservation into the active batch.
func (a *Aggregator) RecordRun(targetIdx int, obs runcollector.RunObservation) error {
	if a.result == nil {
		return ErrNoActiveBatch
	}
	if targetIdx < 0 || targetIdx >= len(a.result.ExitCodes) {
		return ErrTargetIndexOutOfRange
	}
	a.result.ExitCodes[targetIdx] = obs.ExitCode
	a.result.Outputs[targetIdx] = obs.Output
	a.result.Coarse[targetIdx] = obs.Coarse
	a.result.Fine[targetIdx] = obs.Fine
	a.result.Edges[targetIdx] = obs.Edges
	return nil
}

// Decision is what EndBatch determined. Classification and reporting
// are left to the caller; ShouldAttemptReport tells the caller whether
// it is even worth calling the classifier.
type Decision struct {
	Admitted            bool
	Interesting         bool
	NewJoinedTuple      bool
	HExit, HCoarse      uint32
	HFine, HJoined      uint32
	DistinctOutputs     int
	ShouldAttemptReport bool
}

// EndBatch runs the admission filter, signature hashing, novelty
// decision, and output-agreement check of spec.md §4.4 steps 1-4. A
// zero-target batch is a no-op (spec.md §7 "Empty targets").
func (a *Aggregator) EndBatch() Decision {
	result := a.result
	if result == nil || len(result.ExitCodes) == 0 {
		return Decision{}
	}

	decision := Decision{}

	admitted := false
	for _, ec := range result.ExitCodes {
		if ec == 0 {
			admitted = true
			break
		}
	}
	decision.Admitted = admitted
	if !admitted {
		return decision
	}

	hExit := hashkit.HashVector(signedToUnsigned(result.ExitCodes))
	hCoarse := hashkit.HashVector(result.Coarse)
	hFine := hashkit.HashVector(result.Fine)
	decision.HExit, decision.HCoarse, decision.HFine = hExit, hCoarse, hFine

	newExit := a.cumulative.InsertExitCodeHash(hExit)
	newCoarse := a.cumulative.InsertCoarseTupleHash(hCoarse)
	newFine := a.cumulative.InsertFineTupleHash(hFine)
	decision.Interesting = newExit || newCoarse || newFine

	hJoined := hashkit.HashInt(hFine, hashkit.HashInt(hCoarse, hashkit.HashInt(hExit, 0)))
	decision.HJoined = hJoined
	decision.NewJoinedTuple = a.cumulative.InsertJoinedTupleHash(hJoined)
	if !decision.NewJoinedTuple {
		return decision
	}

	decision.DistinctOutputs = distinctNormalizedOutputCount(result.Outputs)
	if decision.DistinctOutputs <= 1 {
		return decision
	}
	decision.ShouldAttemptReport = true
	return decision
}

func signedToUnsigned(vals []int32) []uint32 {
	out := make([]uint32, len(vals))
	for i, v := range vals {
		out[i] = uint32(v)
	}
	return out
}

// distinctNormalizedOutputCount implements spec.md §4.4 step 4 /
// §4.5's normalization rule: outputs are compared for set cardinality
// after stripping ASCII whitespace, never for classification itself.
func distinctNormalizedOutputCount(outputs [][]byte) int {
	seen := make(map[string]struct{}, len(outputs))
	for _, out := range outputs {
		seen[string(classify.StripASCIIWhitespace(out))] = struct{}{}
	}
	return len(seen)
}

// AcceptedOutputs returns the outputs of every target whose exit code
// was zero, in target order — spec.md §4.4 step 5's "accepts".
func AcceptedOutputs(result *BatchResult) [][]byte {
	var accepts [][]byte
	for i, ec := range result.ExitCodes {
		if ec == 0 {
			accepts = append(accepts, result.Outputs[i])
		}
	}
	return accepts
}
