package tm

import "strings"

// NonHaltReason categorizes why a machine was judged non-halting.
type NonHaltReason string

const (
	ReasonTimeout              NonHaltReason = "timeout"
	ReasonEscapee              NonHaltReason = "escapee"
	ReasonCycleTwo             NonHaltReason = "cycle_two"
	ReasonNoHaltTransition     NonHaltReason = "no_halt_transition"
)

// Status is the tagged outcome of one run.
type Status string

const (
	StatusHalted     Status = "halted"
	StatusNonHalting Status = "non_halting"
)

// Outcome is the result of simulating one machine (spec §3's Run outcome).
type Outcome struct {
	Status Status
	Output string        // valid iff Status == StatusHalted
	Reason NonHaltReason // valid iff Status == StatusNonHalting
	Steps  uint64
}

// SimConfig bundles the parameters a simulation run needs beyond the table
// itself.
type SimConfig struct {
	MaxSteps       uint64
	Blank          Symbol
	EnableEscapee  bool
	EnablePeriod2  bool
}

// Simulate runs table on a blank tape per C4/C5. The caller is expected to
// have already applied the C3 pre-run filter; Simulate does not repeat it.
func Simulate(table Table, cfg SimConfig) Outcome {
	tape := make(map[int]Symbol)
	head := 0
	state := State(1)
	minVisited, maxVisited := 0, 0

	var esc *escapeeFilter
	if cfg.EnableEscapee {
		esc = newEscapeeFilter(table.NStates)
	}
	var cyc *cycleTwoFilter
	if cfg.EnablePeriod2 {
		cyc = newCycleTwoFilter()
	}

	read := func(pos int) Symbol {
		if sym, ok := tape[pos]; ok {
			return sym
		}
		return cfg.Blank
	}

	var steps uint64
	for {
		if state == HaltState {
			return Outcome{Status: StatusHalted, Output: extractOutput(tape, cfg.Blank, minVisited, maxVisited), Steps: steps}
		}

		sym := read(head)
		tr := table.At(state, sym)
		tape[head] = tr.Write
		state = tr.NextState
		head += int(tr.Move)
		if head < minVisited {
			minVisited = head
		}
		if head > maxVisited {
			maxVisited = head
		}
		steps++

		if steps >= cfg.MaxSteps {
			return Outcome{Status: StatusNonHalting, Reason: ReasonTimeout, Steps: steps}
		}

		if esc != nil {
			isBlank := read(head) == cfg.Blank
			if esc.step(head, isBlank) {
				return Outcome{Status: StatusNonHalting, Reason: ReasonEscapee, Steps: steps}
			}
		}
		if cyc != nil {
			if cyc.step(state, head, tape) {
				return Outcome{Status: StatusNonHalting, Reason: ReasonCycleTwo, Steps: steps}
			}
		}
	}
}

// extractOutput reads tape[minVisited..maxVisited] left to right, the
// defined output string of a halted machine.
func extractOutput(tape map[int]Symbol, blank Symbol, minVisited, maxVisited int) string {
	var b strings.Builder
	b.Grow(maxVisited - minVisited + 1)
	for pos := minVisited; pos <= maxVisited; pos++ {
		if sym, ok := tape[pos]; ok {
			b.WriteString(sym.String())
		} else {
			b.WriteString(blank.String())
		}
	}
	return b.String()
}
