package batch

import "github.com/batchvm/batchvm/core/fixture"

// Stage and Unstage implement the host<->device staging protocol for a
// batch run: outer allocation, inner allocation plus copy, and
// descriptor fix-up in one direction; shadow-copy, re-home, and pointer
// rewrite in the other.
// On a CPU-only target the whole jagged graph (variable-length stacks,
// memories, and touched-state per instance) already lives in host memory
// in a form the interpreter can run against directly, so both phases
// collapse to ownership transfer: Stage simply hands the same instance
// slice to the caller, and Unstage is a no-op. The two functions still
// exist, with the same N-in/N-out shape the protocol specifies, so a
// heterogeneous-target implementation could replace their bodies with
// real device marshalling without touching Run's call sites.

// Stage performs the outer-allocation and inner-allocation-plus-copy
// phases of the staging protocol. For this target it is the identity
// function: there is no separate device address space, so "copying" an
// instance to the device is just keeping the host's reference to it.
func Stage(instances []*fixture.Instance) []*fixture.Instance {
	return instances
}

// Unstage performs the reverse-direction descriptor fix-up. For this
// target there is nothing to copy back or re-home, so it is a no-op;
// it exists so the staged slice's lifetime is visible at the call site.
func Unstage(staged []*fixture.Instance) {
}
