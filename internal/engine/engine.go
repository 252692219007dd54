// Package engine wires Registry, RunCollector, BatchAggregator, the
// Classifier, and the Reporter into the single-threaded cooperative
// state machine of spec.md §5:
//
//	Registration* ; ( StartBatch ; ( StartRun ; EndRun )* ; EndBatch )*
//
// An Engine is the process-wide singleton (spec.md §9's DTM) the
// HostFacade drives. It holds no locks and is never safe for
// concurrent use — the host is the only caller, and it calls
// synchronously.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"nezha/internal/batch"
	"nezha/internal/classify"
	"nezha/internal/coverage"
	"nezha/internal/manifest"
	"nezha/internal/registry"
	"nezha/internal/report"
	"nezha/internal/runcollector"
)

// ContractViolation is returned for every protocol misuse spec.md §7
// classifies as fatal: broken registration balance, width mismatch,
// run-index mismatch, or calling an operation outside its valid
// state. The host facade is expected to treat it as fatal, per spec.
type ContractViolation struct {
	msg string
}

func (e *ContractViolation) Error() string { return e.msg }

func violation(format string, args ...any) error {
	return &ContractViolation{msg: fmt.Sprintf(format, args...)}
}

type state int

const (
	stateIdle state = iota
	stateInBatch
	stateInRun
)

// Engine is the process-wide coordinator. Construct one with New and
// drive it exclusively from a single thread.
type Engine struct {
	tables     coverage.HostTables
	registry   *registry.Registry
	cumulative *batch.CumulativeState
	aggregator *batch.Aggregator
	reporter   *report.Reporter
	manifest   *manifest.Manifest
	logger     *zap.Logger

	state        state
	nextRunIdx   int
	activeRunIdx int
	keepEdges    bool
}

// New returns an Engine that reads coverage through tables and writes
// reports under baseDir (conventionally "output"). A nil logger is
// replaced with a no-op logger.
func New(tables coverage.HostTables, baseDir string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cumulative := batch.NewCumulativeState()
	return &Engine{
		tables:     tables,
		registry:   registry.New(),
		cumulative: cumulative,
		aggregator: batch.NewAggregator(cumulative),
		reporter:   report.New(baseDir),
		logger:     logger,
		state:      stateIdle,
		keepEdges:  true,
	}
}

// SetManifest attaches a target manifest for display-name resolution
// and classifier-override lookups. A nil manifest (the default) treats
// every non-empty classTag as suppressed and every target's display
// name as its raw id.
func (e *Engine) SetManifest(m *manifest.Manifest) { e.manifest = m }

// SetKeepEdges controls whether RunCollector retains the raw per-run
// edge list (TargetCoverage) or only the coarse/fine signatures. On by
// default; callers that only need signatures should disable it to
// bound memory (spec.md §5).
func (e *Engine) SetKeepEdges(keep bool) { e.keepEdges = keep }

// BeginRegistration opens a registration window. Valid only while
// Idle.
func (e *Engine) BeginRegistration() error {
	if e.state != stateIdle {
		return violation("BeginRegistration called while a batch is active")
	}
	e.registry.BeginRegistration(e.tables)
	return nil
}

// EndRegistration closes the registration window opened by
// BeginRegistration and returns the target's stable index.
func (e *Engine) EndRegistration(id string) (int, error) {
	idx, err := e.registry.EndRegistration(e.tables, id)
	if err != nil {
		return 0, violation("EndRegistration(%q): %v", id, err)
	}
	return idx, nil
}

// GetSectionInfo reports the most recently closed section for the
// target at idx.
func (e *Engine) GetSectionInfo(idx int) (registry.Section, bool) {
	return e.registry.LastSection(idx)
}

// StartBatch opens a batch over the targets registered so far. Valid
// only while Idle.
func (e *Engine) StartBatch(input []byte) error {
	if e.state != stateIdle {
		return violation("StartBatch called while a batch is already active")
	}
	e.aggregator.StartBatch(input, e.registry.Len())
	e.nextRunIdx = 0
	e.state = stateInBatch
	return nil
}

// StartRun returns the index of the next run the host should perform
// and must pair with EndRun. Valid only while InBatch.
func (e *Engine) StartRun() (int, error) {
	if e.state != stateInBatch {
		return 0, violation("StartRun called outside an active batch")
	}
	if e.nextRunIdx >= e.registry.Len() {
		return 0, violation("StartRun called with no remaining targets in this batch")
	}
	idx := e.nextRunIdx
	e.nextRunIdx++
	e.activeRunIdx = idx
	e.state = stateInRun
	return idx, nil
}

// EndRun scans coverage for the target at targetIdx, which must be the
// index returned by the most recent unmatched StartRun, and commits
// the observation into the active batch.
func (e *Engine) EndRun(targetIdx int, exitCode int32, output []byte) error {
	if e.state != stateInRun {
		return violation("EndRun called outside an active run")
	}
	if targetIdx != e.activeRunIdx {
		return violation("EndRun target %d does not match active run %d", targetIdx, e.activeRunIdx)
	}
	target := e.registry.Target(targetIdx)
	if target == nil {
		return violation("EndRun: target %d is not registered", targetIdx)
	}

	obs := runcollector.Collect(e.tables, target.Sections, exitCode, output, e.keepEdges)
	if err := e.aggregator.RecordRun(targetIdx, obs); err != nil {
		return violation("EndRun: %v", err)
	}
	e.state = stateInBatch
	return nil
}

// EndBatch runs admission, novelty, classification, and reporting for
// the active batch, and returns to Idle. A zero-target batch is a
// no-op, per spec.md §7.
func (e *Engine) EndBatch() (batch.Decision, error) {
	if e.state != stateInBatch {
		return batch.Decision{}, violation("EndBatch called outside an active batch")
	}
	result := e.aggregator.Result()
	decision := e.aggregator.EndBatch()
	e.state = stateIdle

	if !decision.ShouldAttemptReport {
		return decision, nil
	}

	accepts := batch.AcceptedOutputs(result)
	classTag := classify.Classify(result.Input, accepts)
	if e.manifest.IsSuppressed(classTag) {
		e.logger.Debug("divergence suppressed by classifier", zap.String("class", classTag))
		return decision, nil
	}

	e.report(result, decision)
	return decision, nil
}

func (e *Engine) report(result *batch.BatchResult, decision batch.Decision) {
	targets := e.registry.Targets()
	results := make([]report.TargetResult, len(targets))
	for i, t := range targets {
		results[i] = report.TargetResult{
			ID:       e.manifest.DisplayName(t.ID),
			ExitCode: result.ExitCodes[i],
			Output:   result.Outputs[i],
		}
	}

	diffPath, summaryPath, err := e.reporter.Report(decision.DistinctOutputs, decision.HExit, decision.HCoarse, decision.HFine, result.Input, results)
	if err != nil {
		e.logger.Error("failed to write divergence report", zap.Error(err))
		return
	}
	e.logger.Info("divergence reported",
		zap.String("diff", diffPath),
		zap.String("summary", summaryPath),
		zap.Uint32("hExit", decision.HExit),
		zap.Uint32("hCoarse", decision.HCoarse),
		zap.Uint32("hFine", decision.HFine),
	)
}

// TargetCoverage borrows the edge list recorded for targetIdx in the
// most recently closed run of the active or just-ended batch.
func (e *Engine) TargetCoverage(targetIdx int) ([]runcollector.EdgeHit, bool) {
	result := e.aggregator.Result()
	if result == nil || targetIdx < 0 || targetIdx >= len(result.Edges) {
		return nil, false
	}
	return result.Edges[targetIdx], true
}

// NezhaCoverage returns the cardinality of the cumulative coarse and
// fine novelty sets.
func (e *Engine) NezhaCoverage() (coarseCount, fineCount int) {
	return e.cumulative.NezhaCoverage()
}
