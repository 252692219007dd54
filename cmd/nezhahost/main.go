// Command nezhahost is the cgo HostFacade: a flat C-linkage surface the
// fuzzing host links against, in the manner of
// catenacyber-webfuzz__fuzzapi.go's LLVMFuzzer* exports. It owns the
// process-wide engine.Engine singleton and the sancov-backed
// LiveHostTables, and translates every LLVMFuzzer* call into a
// synchronous call on the core.
package main

/*
#include <stdint.h>

typedef struct { int start; int end; } FDRange;
typedef struct { FDRange modules; FDRange pctables; } FDSection;
*/
import "C"

import (
	"os"
	"path/filepath"
	"unsafe"

	"go.uber.org/zap"

	"nezha/internal/engine"
	"nezha/internal/manifest"
)

var core *engine.Engine

var hostLogger *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	lg, err := cfg.Build()
	if err != nil {
		lg = zap.NewNop()
	}
	hostLogger = lg

	// internal/report.Reporter never creates its own directories; as the
	// host facade, nezhahost must make them creatable before the linked
	// fuzzing driver starts any batch.
	if err := os.MkdirAll(filepath.Join("output", "diffs"), 0o755); err != nil {
		hostLogger.Fatal("failed to create diffs dir", zap.Error(err))
	}
	if err := os.MkdirAll(filepath.Join("output", "diffs-summary"), 0o755); err != nil {
		hostLogger.Fatal("failed to create diffs-summary dir", zap.Error(err))
	}

	core = engine.New(liveTables, "output", hostLogger)

	if m, err := manifest.Load("targets.yaml", hostLogger); err == nil {
		core.SetManifest(m)
	}
}

// fatal logs a contract violation and aborts, matching spec.md §7's
// "emit diagnostic to standard error and abort" for contract
// violations.
func fatal(err error) {
	hostLogger.Error("nezhahost: contract violation", zap.Error(err))
	os.Exit(1)
}

//export LLVMFuzzerStartRegistration
func LLVMFuzzerStartRegistration() {
	if err := core.BeginRegistration(); err != nil {
		fatal(err)
	}
}

//export LLVMFuzzerEndRegistration
func LLVMFuzzerEndRegistration(id *C.char) C.int {
	idx, err := core.EndRegistration(C.GoString(id))
	if err != nil {
		fatal(err)
	}
	return C.int(idx)
}

//export LLVMFuzzerGetSectionInfo
func LLVMFuzzerGetSectionInfo(handle C.int, out *C.FDSection) {
	section, ok := core.GetSectionInfo(int(handle))
	if !ok {
		return
	}
	out.modules.start = C.int(section.ModuleStart)
	out.modules.end = C.int(section.ModuleEnd)
	out.pctables.start = C.int(section.PCTableStart)
	out.pctables.end = C.int(section.PCTableEnd)
}

//export LLVMFuzzerStartBatch
func LLVMFuzzerStartBatch(data *C.uint8_t, size C.size_t) {
	input := cBytes(unsafe.Pointer(data), int(size))
	if err := core.StartBatch(input); err != nil {
		fatal(err)
	}
}

// pendingRunIdx is the target index LLVMFuzzerStartRun most recently
// produced. spec.md §6 gives LLVMFuzzerEndRun a sectionIds/n pair
// rather than a target index; the host is expected to pass back the
// same sections LLVMFuzzerGetSectionInfo described for that target, but
// the core itself only tracks a single active target index (spec.md
// §5's InRun(i) state), so this shim collapses sectionIds/n down to
// that index itself rather than reverse-mapping sections to targets.
var pendingRunIdx int

//export LLVMFuzzerStartRun
func LLVMFuzzerStartRun() C.int {
	idx, err := core.StartRun()
	if err != nil {
		fatal(err)
	}
	pendingRunIdx = idx
	return C.int(idx)
}

//export LLVMFuzzerEndRun
func LLVMFuzzerEndRun(sectionIds *C.int, n C.int, exitCode C.int, out *C.uint8_t, outSize C.size_t) {
	_ = cInts(unsafe.Pointer(sectionIds), int(n))
	output := cBytes(unsafe.Pointer(out), int(outSize))
	if err := core.EndRun(pendingRunIdx, int32(exitCode), output); err != nil {
		fatal(err)
	}
}

//export LLVMFuzzerEndBatch
func LLVMFuzzerEndBatch() {
	if _, err := core.EndBatch(); err != nil {
		fatal(err)
	}
}

//export LLVMFuzzerTargetCoverage
func LLVMFuzzerTargetCoverage(i C.int, edges **C.uintptr_t, n *C.int) {
	hits, ok := core.TargetCoverage(int(i))
	if !ok || len(hits) == 0 {
		*n = 0
		return
	}
	buf := make([]uintptr, len(hits))
	for idx, h := range hits {
		buf[idx] = uintptr(h.CounterSlot)
	}
	*edges = (*C.uintptr_t)(unsafe.Pointer(&buf[0]))
	*n = C.int(len(buf))
}

//export LLVMFuzzerNezhaCoverage
func LLVMFuzzerNezhaCoverage(coarseCount, fineCount *C.int) {
	coarse, fine := core.NezhaCoverage()
	*coarseCount = C.int(coarse)
	*fineCount = C.int(fine)
}

func cBytes(ptr unsafe.Pointer, n int) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

func cInts(ptr unsafe.Pointer, n int) []int32 {
	if ptr == nil || n == 0 {
		return nil
	}
	c := unsafe.Slice((*C.int)(ptr), n)
	out := make([]int32, n)
	for i, v := range c {
		out[i] = int32(v)
	}
	return out
}

func main() {}
