package task

import (
	"etamoo/vm"
)

// TracebackLines extracts the player-facing report for a terminal
// outcome: the machine's traceback for uncaught errors and budget
// exhaustion, nothing for clean completions.
func TracebackLines(out *vm.Outcome) []string {
	switch out.Kind {
	case vm.OutUncaught, vm.OutTicksExhausted, vm.OutSecondsExhausted:
		return out.Traceback
	default:
		return nil
	}
}
