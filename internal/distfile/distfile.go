// Package distfile reads and writes the final output-frequency distribution
// file (spec §6), the one artifact a run produces for downstream complexity
// estimation.
package distfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// File is the JSON document written once at the end of a run.
type File struct {
	NStates           int                        `json:"n"`
	M                 int                        `json:"m"`
	MaxRuntimeSteps   uint64                     `json:"max_runtime_steps"`
	BlankSymbol       tm.Symbol                  `json:"blank_symbol"`
	Enumeration       tm.Mode                    `json:"enumeration"`
	CompletionApplied bool                       `json:"completion_applied"`
	HaltingTotal      uint64                     `json:"halting_total"`
	NonHalting        map[tm.NonHaltReason]uint64 `json:"non_halting"`
	Distribution      aggregate.Distribution     `json:"distribution,omitempty"`
	RawCounts         map[string]uint64          `json:"raw_counts,omitempty"`
}

// Build assembles a File from a finalized aggregator. saveRawCounts selects
// between the raw_counts and distribution output shapes (driver option in
// spec §6).
func Build(a *aggregate.Aggregator, maxSteps uint64, blank tm.Symbol, mode tm.Mode, saveRawCounts bool) File {
	f := File{
		NStates:           a.NStates,
		M:                 2,
		MaxRuntimeSteps:   maxSteps,
		BlankSymbol:       blank,
		Enumeration:       mode,
		CompletionApplied: a.CompletionApplied,
		HaltingTotal:      a.TotalHalting,
		NonHalting:        a.NonHalting,
	}
	if saveRawCounts {
		f.RawCounts = a.Counts
	} else {
		f.Distribution = a.Finalize()
	}
	return f
}

// Save writes f to path atomically (temp file + rename), matching the
// discipline the checkpoint package uses.
func Save(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("distfile: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".distfile-*.tmp")
	if err != nil {
		return fmt.Errorf("distfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("distfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("distfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("distfile: rename into place: %w", err)
	}
	return nil
}

// Load reads a distribution file previously written by Save.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("distfile: read: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("distfile: unmarshal: %w", err)
	}
	return f, nil
}
