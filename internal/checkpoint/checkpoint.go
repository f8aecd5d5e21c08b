// Package checkpoint persists and restores the driver's resumable state
// (C8): the run's enumeration parameters, the contiguous completed-batch
// watermark, and the global aggregator. Persistence follows the teacher
// pack's temp-file-then-rename discipline for atomic writes.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/classify"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// schemaVersion is bumped whenever the on-disk shape changes incompatibly.
// Load rejects any file whose version differs.
const schemaVersion = 1

// State is the full resumable state of one driver run.
type State struct {
	SchemaVersion int `json:"schema_version"`

	NStates         int       `json:"n_states"`
	MaxRuntimeSteps uint64    `json:"max_runtime_steps"`
	Mode            tm.Mode   `json:"enumeration_mode"`
	BlankSymbol     tm.Symbol `json:"blank_symbol"`
	BatchSize       uint64    `json:"batch_size"`

	// Watermark is the contiguous count of batches completed so far,
	// counted in batch-index units: batches [0, Watermark) are done.
	Watermark uint64 `json:"watermark"`

	CompletionApplied bool `json:"completion_applied"`

	Counts     map[string]uint64           `json:"counts"`
	NonHalting map[tm.NonHaltReason]uint64 `json:"non_halting"`
}

// FromAggregator snapshots a, plus the driver's run parameters and
// watermark, into a State ready to persist.
func FromAggregator(a *aggregate.Aggregator, nStates int, maxSteps uint64, mode tm.Mode, blank tm.Symbol, batchSize, watermark uint64) State {
	return State{
		SchemaVersion:      schemaVersion,
		NStates:            nStates,
		MaxRuntimeSteps:    maxSteps,
		Mode:               mode,
		BlankSymbol:        blank,
		BatchSize:          batchSize,
		Watermark:          watermark,
		CompletionApplied:  a.CompletionApplied,
		Counts:             a.Counts,
		NonHalting:         a.NonHalting,
	}
}

// ToAggregator rebuilds an *aggregate.Aggregator from a loaded State.
func (s State) ToAggregator() *aggregate.Aggregator {
	a := aggregate.New(s.NStates)
	a.CompletionApplied = s.CompletionApplied
	for k, v := range s.Counts {
		a.Counts[k] = v
	}
	for k, v := range s.NonHalting {
		a.NonHalting[k] = v
	}
	a.TotalHalting = sumUint64Values(s.Counts)
	a.TotalProcessed = a.TotalHalting + sumUint64Values(castCounts(s.NonHalting))
	return a
}

func castCounts(m map[tm.NonHaltReason]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func sumUint64Values(m map[string]uint64) uint64 {
	var total uint64
	for _, v := range m {
		total += v
	}
	return total
}

// Save writes state to path atomically: it writes to a sibling temp file
// and renames over path, so a crash mid-write never leaves a truncated or
// corrupt checkpoint on disk.
func Save(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return classify.Terminal(fmt.Errorf("checkpoint: marshal: %w", err))
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// Load reads and validates a checkpoint written by Save. It does not check
// the loaded state against a requested run's parameters; call Validate for
// that once the caller knows what run it intends to resume.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, classify.Terminal(fmt.Errorf("checkpoint: %w", err))
		}
		return State{}, classify.Terminal(fmt.Errorf("checkpoint: read: %w", err))
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, classify.Terminal(fmt.Errorf("checkpoint: corrupt checkpoint, cannot unmarshal: %w", err))
	}
	if state.SchemaVersion != schemaVersion {
		return State{}, classify.Terminal(fmt.Errorf("checkpoint: schema mismatch: file has version %d, driver expects %d", state.SchemaVersion, schemaVersion))
	}
	return state, nil
}

// Validate rejects a loaded checkpoint whose enumeration parameters do not
// match the run the caller is about to start (spec §4.8: "verify n and mode
// match the requested run; abort otherwise").
func Validate(state State, nStates int, mode tm.Mode, blank tm.Symbol) error {
	if state.NStates != nStates {
		return classify.Terminal(fmt.Errorf("checkpoint: n_states mismatch: checkpoint has %d, run requested %d", state.NStates, nStates))
	}
	if state.Mode != mode {
		return classify.Terminal(fmt.Errorf("checkpoint: enumeration mode mismatch: checkpoint has %q, run requested %q", state.Mode, mode))
	}
	if state.BlankSymbol != blank {
		return classify.Terminal(fmt.Errorf("checkpoint: blank_symbol mismatch: checkpoint has %s, run requested %s", state.BlankSymbol, blank))
	}
	return nil
}

// Exists reports whether a checkpoint file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
