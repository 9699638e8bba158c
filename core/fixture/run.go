package fixture

import "github.com/batchvm/batchvm/core/vm"

// Result is one instance's outcome: the interpreter's verdict plus the
// trace it produced, ready for rendering.
type Result struct {
	Instance *Instance
	Outcome  vm.Outcome
	Trace    *vm.Trace
}

// Run executes a single instance to completion against a fresh Journal and
// Trace. Instances share no mutable state with one another; calling Run
// concurrently for distinct instances is safe.
func Run(inst *Instance) *Result {
	journal := vm.NewJournal(inst.World)
	trace := vm.NewTrace()
	interp := vm.NewInterpreter(journal, trace, inst.Block)

	outcome := interp.Run(inst.Msg)
	journal.Settle()

	return &Result{Instance: inst, Outcome: outcome, Trace: trace}
}
