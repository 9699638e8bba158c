package vm

// trace.go implements the per-instance append-only execution trace. It
// generalizes tracer.go's EVMLogger / StructLogTracer (which deep-copies
// the stack on every CaptureState) into parallel-array storage (one
// slice per field rather than a slice of compound entries, for cache
// friendliness), growth by a fixed PAGE-sized step with move-copy-then-
// zero-tail semantics, and a modify-last late-binding hook.

import (
	"encoding/hex"
	"fmt"

	"github.com/batchvm/batchvm/core/types"
)

// TracePage is the growth increment used when the trace runs out of
// capacity. Any non-shrinking geometric or arithmetic policy with O(1)
// amortized push cost is conformant; 128 matches the data model's
// suggested page size.
const TracePage = 128

// Trace is an ordered, append-only sequence of trace entries for a single
// instance, stored as parallel arrays. Created empty at frame open;
// survives frame close; destroyed at batch teardown.
type Trace struct {
	size, capacity int

	addr      []types.Address
	pc        []uint64
	op        []OpCode
	stack     [][]Word
	memory    [][]byte
	touched   [][]TouchedAccountSnapshot
	gasUsed   []uint64
	gasLimit  []uint64
	gasRefund []uint64
	errCode   []ErrorCode

	lastPatched int // index of the entry already given one modify_last patch, or -1
}

// NewTrace returns an empty Trace.
func NewTrace() *Trace {
	return &Trace{lastPatched: -1}
}

// Len returns the number of entries currently recorded.
func (t *Trace) Len() int { return t.size }

// Cap returns the current backing capacity.
func (t *Trace) Cap() int { return t.capacity }

// grow reallocates every parallel array to capacity+TracePage, move-
// copying the first `size` entries and leaving the tail zero-valued so
// later probes see empty snapshots, per the grow contract.
func (t *Trace) grow() {
	newCap := t.capacity + TracePage

	newAddr := make([]types.Address, newCap)
	newPc := make([]uint64, newCap)
	newOp := make([]OpCode, newCap)
	newStack := make([][]Word, newCap)
	newMemory := make([][]byte, newCap)
	newTouched := make([][]TouchedAccountSnapshot, newCap)
	newGasUsed := make([]uint64, newCap)
	newGasLimit := make([]uint64, newCap)
	newGasRefund := make([]uint64, newCap)
	newErrCode := make([]ErrorCode, newCap)

	copy(newAddr, t.addr[:t.size])
	copy(newPc, t.pc[:t.size])
	copy(newOp, t.op[:t.size])
	copy(newStack, t.stack[:t.size])
	copy(newMemory, t.memory[:t.size])
	copy(newTouched, t.touched[:t.size])
	copy(newGasUsed, t.gasUsed[:t.size])
	copy(newGasLimit, t.gasLimit[:t.size])
	copy(newGasRefund, t.gasRefund[:t.size])
	copy(newErrCode, t.errCode[:t.size])

	t.capacity = newCap
	t.addr, t.pc, t.op = newAddr, newPc, newOp
	t.stack, t.memory, t.touched = newStack, newMemory, newTouched
	t.gasUsed, t.gasLimit, t.gasRefund = newGasUsed, newGasLimit, newGasRefund
	t.errCode = newErrCode
}

// Push appends one retirement boundary to the trace. The stack, memory,
// and touched-state snapshots are deep-copied from the live frame, so
// later mutation of stack/mem/j is never visible through this entry.
func (t *Trace) Push(addr types.Address, pc uint64, op OpCode, stack *Stack, mem *Memory, j *Journal, gasUsed, gasLimit, gasRefund uint64, errCode ErrorCode) {
	if t.size == t.capacity {
		t.grow()
	}
	i := t.size
	t.addr[i] = addr
	t.pc[i] = pc
	t.op[i] = op
	t.stack[i] = stack.Snapshot()
	t.memory[i] = mem.Snapshot()
	t.touched[i] = j.TouchedSnapshot()
	t.gasUsed[i] = gasUsed
	t.gasLimit[i] = gasLimit
	t.gasRefund[i] = gasRefund
	t.errCode[i] = errCode
	t.size++
	t.lastPatched = -1
}

// ModifyLastStack overwrites only the stack snapshot of the most recently
// pushed entry. This is the single concession to late binding, used when
// an opcode's effect on the stack is only known after a sub-call returns.
// It panics if called more than once for the same entry or on an empty
// trace, per the single-patch-per-entry invariant.
func (t *Trace) ModifyLastStack(stack *Stack) {
	if t.size == 0 {
		panic("vm: modify_last called on an empty trace")
	}
	i := t.size - 1
	if t.lastPatched == i {
		panic("vm: modify_last called twice for the same trace entry")
	}
	t.stack[i] = stack.Snapshot()
	t.lastPatched = i
}

// Entry is a single trace record, materialized on demand by At. Fields
// mirror the touched-state journal and gas triple described by the data
// model.
type Entry struct {
	Address   types.Address
	Pc        uint64
	Op        OpCode
	Stack     []Word
	Memory    []byte
	Touched   []TouchedAccountSnapshot
	GasUsed   uint64
	GasLimit  uint64
	GasRefund uint64
	ErrCode   ErrorCode
}

// At returns the i-th trace entry. Panics if i is out of [0, Len()).
func (t *Trace) At(i int) Entry {
	if i < 0 || i >= t.size {
		panic("vm: trace index out of range")
	}
	return Entry{
		Address:   t.addr[i],
		Pc:        t.pc[i],
		Op:        t.op[i],
		Stack:     t.stack[i],
		Memory:    t.memory[i],
		Touched:   t.touched[i],
		GasUsed:   t.gasUsed[i],
		GasLimit:  t.gasLimit[i],
		GasRefund: t.gasRefund[i],
		ErrCode:   t.errCode[i],
	}
}

// DocEntry is the JSON-ready shape of one trace entry, matching the trace
// document external interface exactly: hex-string words, top-last stack
// order, numeric error code.
type DocEntry struct {
	Address    string          `json:"address"`
	Pc         uint64          `json:"pc"`
	Opcode     string          `json:"opcode"`
	Stack      []string        `json:"stack"`
	Memory     string          `json:"memory"`
	TouchState []TouchStateDoc `json:"touch_state"`
	GasUsed    string          `json:"gas_used"`
	GasLimit   string          `json:"gas_limit"`
	GasRefund  string          `json:"gas_refund"`
	ErrorCode  uint8           `json:"error_code"`
}

// TouchStateDoc is the JSON-ready shape of one account delta within a
// trace entry's touch_state list.
type TouchStateDoc struct {
	Address string            `json:"address"`
	Nonce   uint64            `json:"nonce"`
	Balance string            `json:"balance"`
	Storage map[string]string `json:"storage"`
	Status  string            `json:"status"`
}

// Render emits the trace as a JSON-ready document. Rendering is pure and
// does not consume or mutate the trace.
func (t *Trace) Render() []DocEntry {
	docs := make([]DocEntry, t.size)
	for i := 0; i < t.size; i++ {
		stackHex := make([]string, len(t.stack[i]))
		for si, w := range t.stack[i] {
			stackHex[si] = wordHex(w)
		}

		touched := make([]TouchStateDoc, len(t.touched[i]))
		for ti, acc := range t.touched[i] {
			storage := make(map[string]string, len(acc.Storage))
			for k, v := range acc.Storage {
				storage[wordHex(k)] = wordHex(v)
			}
			touched[ti] = TouchStateDoc{
				Address: acc.Address.Hex(),
				Nonce:   acc.Nonce,
				Balance: wordHex(acc.Balance),
				Storage: storage,
				Status:  acc.Status.String(),
			}
		}

		docs[i] = DocEntry{
			Address:    t.addr[i].Hex(),
			Pc:         t.pc[i],
			Opcode:     t.op[i].String(),
			Stack:      stackHex,
			Memory:     "0x" + hex.EncodeToString(t.memory[i]),
			TouchState: touched,
			GasUsed:    fmt.Sprintf("0x%x", t.gasUsed[i]),
			GasLimit:   fmt.Sprintf("0x%x", t.gasLimit[i]),
			GasRefund:  fmt.Sprintf("0x%x", t.gasRefund[i]),
			ErrorCode:  uint8(t.errCode[i]),
		}
	}
	return docs
}

func wordHex(w Word) string {
	b := w.Bytes32()
	return "0x" + hex.EncodeToString(b[:])
}
