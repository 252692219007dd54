// Command hostsim drives internal/engine.Engine the way a real fuzzing
// host would, but entirely in Go and against coverage.SimHostTables, so
// a batch can be scripted from plain fixture files without a cgo
// target binary — the role cmd/mock plays for the teacher's scheduler,
// standing in for an external collaborator this repo doesn't own.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"nezha/internal/coverage"
	"nezha/internal/engine"
	"nezha/internal/manifest"
)

const moduleSize = 256

func main() {
	inputPath := flag.String("input", "", "path to the batch input file")
	targets := flag.Int("targets", 0, "number of targets to register and run this batch against")
	fixtureDir := flag.String("fixture", "", "directory of <target>.exit/.out/.cov fixture triples")
	manifestPath := flag.String("manifest", "", "path to targets.yaml")
	flag.Parse()

	if *inputPath == "" || *targets <= 0 || *fixtureDir == "" {
		fmt.Fprintln(os.Stderr, "usage: hostsim -input <file> -targets <n> -fixture <dir> [-manifest <targets.yaml>]")
		os.Exit(2)
	}

	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	// internal/report.Reporter never creates its own directories; as the
	// host, hostsim must make them creatable before driving any batch.
	if err := os.MkdirAll(filepath.Join("output", "diffs"), 0o755); err != nil {
		logger.Fatal("failed to create diffs dir", zap.Error(err))
	}
	if err := os.MkdirAll(filepath.Join("output", "diffs-summary"), 0o755); err != nil {
		logger.Fatal("failed to create diffs-summary dir", zap.Error(err))
	}

	tables := coverage.NewSimHostTables()
	eng := engine.New(tables, "output", logger)

	if *manifestPath != "" {
		m, err := manifest.Load(*manifestPath, logger)
		if err != nil {
			logger.Fatal("failed to load manifest", zap.Error(err))
		}
		eng.SetManifest(m)
	}

	moduleOf := make([]int, *targets)
	for i := 0; i < *targets; i++ {
		if err := eng.BeginRegistration(); err != nil {
			logger.Fatal("BeginRegistration failed", zap.Error(err))
		}
		counters := make([]byte, moduleSize)
		mi := tables.AddFullModule(counters)
		pcEntries := make([]coverage.PCEntry, moduleSize)
		for j := range pcEntries {
			pcEntries[j] = coverage.PCEntry{PC: uintptr(j)}
		}
		tables.AddPCTable(pcEntries)
		moduleOf[i] = mi

		name := fmt.Sprintf("target%d", i)
		if _, err := eng.EndRegistration(name); err != nil {
			logger.Fatal("EndRegistration failed", zap.Error(err))
		}
	}

	input, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatal("failed to read input file", zap.Error(err))
	}

	if err := eng.StartBatch(input); err != nil {
		logger.Fatal("StartBatch failed", zap.Error(err))
	}

	for i := 0; i < *targets; i++ {
		idx, err := eng.StartRun()
		if err != nil {
			logger.Fatal("StartRun failed", zap.Error(err))
		}

		name := fmt.Sprintf("target%d", idx)
		exitCode, output, err := loadFixture(*fixtureDir, name, tables, moduleOf[idx])
		if err != nil {
			logger.Fatal("failed to load fixture", zap.String("target", name), zap.Error(err))
		}

		if err := eng.EndRun(idx, exitCode, output); err != nil {
			logger.Fatal("EndRun failed", zap.Error(err))
		}
	}

	decision, err := eng.EndBatch()
	if err != nil {
		logger.Fatal("EndBatch failed", zap.Error(err))
	}

	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Println(string(out))
}

// loadFixture reads <dir>/<name>.exit, <dir>/<name>.out, and
// <dir>/<name>.cov, applying the .cov file's "offset hits" lines to
// moduleIdx's counters.
func loadFixture(dir, name string, tables *coverage.SimHostTables, moduleIdx int) (int32, []byte, error) {
	exitBytes, err := os.ReadFile(filepath.Join(dir, name+".exit"))
	if err != nil {
		return 0, nil, err
	}
	exitCode, err := strconv.Atoi(strings.TrimSpace(string(exitBytes)))
	if err != nil {
		return 0, nil, fmt.Errorf("parsing %s.exit: %w", name, err)
	}

	output, err := os.ReadFile(filepath.Join(dir, name+".out"))
	if err != nil {
		return 0, nil, err
	}

	covPath := filepath.Join(dir, name+".cov")
	covFile, err := os.Open(covPath)
	if err != nil {
		return 0, nil, err
	}
	defer covFile.Close()

	scanner := bufio.NewScanner(covFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return 0, nil, fmt.Errorf("%s: malformed line %q, want \"<offset> <hits>\"", covPath, line)
		}
		offset, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, nil, fmt.Errorf("%s: bad offset %q: %w", covPath, fields[0], err)
		}
		hits, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, nil, fmt.Errorf("%s: bad hit count %q: %w", covPath, fields[1], err)
		}
		tables.SetCounter(moduleIdx, offset, byte(hits))
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}

	return int32(exitCode), output, nil
}
