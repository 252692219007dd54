package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// reportFields is the subset of a divergence artifact's filename this
// sidecar needs, parsed back out of the naming contract
// internal/report.Reporter.Report writes:
// diff-{k}-{hExit}-{hCoarse}-{hFine}-{inputSha1Hex}[.txt]
type reportFields struct {
	DistinctOut int
	HExit       uint32
	HCoarse     uint32
	HFine       uint32
	InputSHA1   string
}

func parseReportFilename(path string) (reportFields, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".txt")
	base = strings.TrimPrefix(base, "diff-")

	parts := strings.Split(base, "-")
	if len(parts) != 5 {
		return reportFields{}, fmt.Errorf("filename.go: %q does not match diff-{k}-{hExit}-{hCoarse}-{hFine}-{sha1} naming", base)
	}

	k, err := strconv.Atoi(parts[0])
	if err != nil {
		return reportFields{}, fmt.Errorf("filename.go: bad k in %q: %w", base, err)
	}
	hExit, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return reportFields{}, fmt.Errorf("filename.go: bad hExit in %q: %w", base, err)
	}
	hCoarse, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return reportFields{}, fmt.Errorf("filename.go: bad hCoarse in %q: %w", base, err)
	}
	hFine, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return reportFields{}, fmt.Errorf("filename.go: bad hFine in %q: %w", base, err)
	}

	return reportFields{
		DistinctOut: k,
		HExit:       uint32(hExit),
		HCoarse:     uint32(hCoarse),
		HFine:       uint32(hFine),
		InputSHA1:   parts[4],
	}, nil
}
