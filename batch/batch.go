// Package batch drives a batch of independent fixture instances to
// completion. It is the only concurrent entry point in this module: each
// instance owns its own Journal, Trace, and Interpreter, so nothing
// inside core/vm is shared between goroutines, making every instance
// embarrassingly parallel. The host<->device staging protocol collapses
// to ownership transfer here, since this is a CPU-only target; Stage
// and Unstage still exist so the same driver shape could be dropped onto
// a heterogeneous runtime unchanged.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/batchvm/batchvm/core/fixture"
	"github.com/batchvm/batchvm/core/vm"
	"github.com/batchvm/batchvm/log"
)

var logger = log.Default().Module("batch")

// Outcome pairs one instance with its run result, indexed positionally so
// callers can line results back up with the fixture's instance order.
type Outcome struct {
	Instance *fixture.Instance
	Result   *fixture.Result
	Panic    error // set when the instance's goroutine recovered from a panic
}

// terminalErrCodes are the error codes the CLI contract treats as a
// batch-level failure signal.
var terminalErrCodes = map[vm.ErrorCode]bool{
	vm.ErrInvalidOpcode: true,
	vm.ErrDepthExceeded: true,
	vm.ErrAborted:       true,
}

// Run executes every instance with up to workers concurrent goroutines,
// returning one Outcome per instance in input order. A panic inside one
// instance is recovered and folded into that instance's own Outcome
// without affecting any sibling instance: a fault in instance i never
// affects instance j. metrics may be nil.
func Run(ctx context.Context, instances []*fixture.Instance, workers int, metrics *Metrics) []*Outcome {
	outcomes := make([]*Outcome, len(instances))
	staged := Stage(instances)

	g, _ := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, inst := range staged {
		i, inst := i, inst
		g.Go(func() error {
			out := runOne(inst)
			if metrics != nil {
				metrics.observe(out)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // runOne never returns an error; every failure is folded into its own Outcome

	Unstage(staged)
	return outcomes
}

func runOne(inst *fixture.Instance) (out *Outcome) {
	out = &Outcome{Instance: inst}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("instance panicked", "name", inst.Name, "index", inst.Index, "panic", r)
			out.Panic = fmt.Errorf("instance aborted: %v", r)
			var gasUsed uint64
			if inst.Msg != nil {
				gasUsed = inst.Msg.Gas
			}
			out.Result = &fixture.Result{
				Instance: inst,
				Outcome:  vm.Outcome{ErrCode: vm.ErrAborted, GasUsed: gasUsed},
				Trace:    vm.NewTrace(),
			}
		}
	}()
	out.Result = fixture.Run(inst)
	return out
}

// Failed reports whether any outcome's final error code (or recovered
// panic) should make the driver exit non-zero, per the CLI contract.
func Failed(outcomes []*Outcome) bool {
	for _, o := range outcomes {
		if o.Panic != nil {
			return true
		}
		if o.Result != nil && terminalErrCodes[o.Result.Outcome.ErrCode] {
			return true
		}
	}
	return false
}
