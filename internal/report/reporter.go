// Package report writes the two on-disk artifacts produced for each
// reportable divergence, per spec.md §4.6: the raw input bytes and a
// human-readable summary naming every target's exit code and output.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"nezha/internal/hashkit"
)

// TargetResult is one target's contribution to a reported divergence,
// in the order its Target was registered.
type TargetResult struct {
	ID       string
	ExitCode int32
	Output   []byte
}

// Sidecar is the JSON-serializable form of a reported divergence,
// written alongside the human-readable summary so reportbridge can
// recover the structured facts without re-parsing them out of the
// artifact filename or the summary's free-text rendering.
type Sidecar struct {
	DistinctOut int            `json:"distinct_out"`
	HExit       uint32         `json:"h_exit"`
	HCoarse     uint32         `json:"h_coarse"`
	HFine       uint32         `json:"h_fine"`
	InputSHA1   string         `json:"input_sha1"`
	Targets     []TargetResult `json:"targets"`
}

// Reporter writes diffs under a fixed output directory tree. The
// directories themselves are not Reporter's responsibility — per
// spec.md §7, the host must make diffsDir/summaryDir creatable before
// driving any batch; Report fails rather than creating them itself.
type Reporter struct {
	diffsDir   string
	summaryDir string
}

// New returns a Reporter rooted at baseDir (conventionally "output").
func New(baseDir string) *Reporter {
	return &Reporter{
		diffsDir:   filepath.Join(baseDir, "diffs"),
		summaryDir: filepath.Join(baseDir, "diffs-summary"),
	}
}

// Report writes output/diffs/diff-{k}-{hExit}-{hCoarse}-{hFine}-{inputSha1Hex},
// its .txt summary counterpart, and a .json sidecar next to the
// summary, and returns the diff and summary paths. diffsDir and
// summaryDir must already exist.
func (r *Reporter) Report(k int, hExit, hCoarse, hFine uint32, input []byte, results []TargetResult) (diffPath, summaryPath string, err error) {
	name := fmt.Sprintf("diff-%d-%d-%d-%d-%s", k, hExit, hCoarse, hFine, hashkit.HashBytes(input))
	diffPath = filepath.Join(r.diffsDir, name)
	summaryPath = filepath.Join(r.summaryDir, name+".txt")
	sidecarPath := filepath.Join(r.summaryDir, name+".json")

	if err := writeAtomic(diffPath, input); err != nil {
		return "", "", fmt.Errorf("report: writing raw input: %w", err)
	}
	if err := writeAtomic(summaryPath, renderSummary(input, results)); err != nil {
		return "", "", fmt.Errorf("report: writing summary: %w", err)
	}
	sidecar := Sidecar{
		DistinctOut: k,
		HExit:       hExit,
		HCoarse:     hCoarse,
		HFine:       hFine,
		InputSHA1:   hashkit.HashBytes(input),
		Targets:     results,
	}
	sidecarBytes, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("report: marshaling sidecar: %w", err)
	}
	if err := writeAtomic(sidecarPath, sidecarBytes); err != nil {
		return "", "", fmt.Errorf("report: writing sidecar: %w", err)
	}
	return diffPath, summaryPath, nil
}

// writeAtomic writes to a uniquely-named sibling temp file and renames
// it into place, so cmd/reportbridge's directory watcher never observes
// a partially-written artifact.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func renderSummary(input []byte, results []TargetResult) []byte {
	var buf bytes.Buffer
	buf.Write(input)
	buf.WriteByte('\n')
	for _, res := range results {
		fmt.Fprintf(&buf, "%s (Exit Code: %d - Size: %d): ", res.ID, res.ExitCode, len(res.Output))
		buf.Write(renderOutput(res.Output))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// renderOutput emits printable ASCII bytes verbatim and renders every
// other byte as " [<decimal>] ", per spec.md §4.6.
func renderOutput(output []byte) []byte {
	var buf bytes.Buffer
	for _, b := range output {
		if b >= 0x20 && b <= 0x7e {
			buf.WriteByte(b)
		} else {
			fmt.Fprintf(&buf, " [%d] ", b)
		}
	}
	return buf.Bytes()
}
