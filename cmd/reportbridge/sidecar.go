package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nezha/internal/report"
)

// readSidecar loads the .json sidecar internal/report.Reporter writes
// next to summaryPath, if present. A missing sidecar is not an error —
// it is optional enrichment on top of the facts parseReportFilename
// already recovers from the name alone, so older artifacts written
// before the sidecar existed remain forwardable.
func readSidecar(summaryPath string) (*report.Sidecar, error) {
	sidecarPath := strings.TrimSuffix(summaryPath, filepath.Ext(summaryPath)) + ".json"
	raw, err := os.ReadFile(sidecarPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", sidecarPath, err)
	}

	var sidecar report.Sidecar
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", sidecarPath, err)
	}
	return &sidecar, nil
}
