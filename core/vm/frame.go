package vm

// frame.go implements the per-call-frame execution context: code, program
// counter, gas meter, and the stack/memory it owns exclusively. It folds
// Contract-style fields (GetOp/UseGas/validJumpdest/analyzeJumpdests)
// and CallFrame (depth, static-ness, frame-local return data) into a
// single type, since Stack and Memory here are already frame-owned
// values rather than fields borrowed from a shared *EVM. Since a batch
// runs many instances over the same deployed bytecode, JUMPDEST
// analysis is cached by code hash rather than repeated per frame: a
// roaring.Bitmap holds the valid destinations compactly, and an LRU
// bounds how much analyzed bytecode stays resident across a long-running
// batch driver.

import (
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/hashicorp/golang-lru/v2"

	"github.com/batchvm/batchvm/core/types"
	"github.com/batchvm/batchvm/crypto"
)

// jumpdestCacheSize bounds the number of distinct code bodies whose
// JUMPDEST analysis is kept resident at once.
const jumpdestCacheSize = 256

// jumpdestCache is shared read-only analysis results across every
// instance in a batch; golang-lru/v2's Cache is safe for concurrent use,
// matching the driver's one-goroutine-per-instance execution model.
var jumpdestCache, _ = lru.New[types.Hash, *roaring.Bitmap](jumpdestCacheSize)

// Frame is one call or create's mutable execution state.
type Frame struct {
	Address  types.Address // storage/balance context: To for CALL/CREATE, caller's context for DELEGATECALL/CALLCODE
	CodeAddr types.Address // account the running code was loaded from
	Code     []byte
	jumpdest *roaring.Bitmap // valid JUMPDEST positions, analyzed once per distinct code body and cached

	Msg    *Message
	Stack  *Stack
	Memory *Memory
	PC     uint64
	Gas    uint64
	Static bool

	LastReturnData []byte // output of the most recently completed sub-call, for RETURNDATASIZE/COPY
}

// NewFrame constructs a frame ready to execute code, analyzing its
// JUMPDEST positions up front (or reusing a prior instance's analysis of
// the same code).
func NewFrame(address, codeAddr types.Address, code []byte, msg *Message, gas uint64, static bool) *Frame {
	return &Frame{
		Address:  address,
		CodeAddr: codeAddr,
		Code:     code,
		jumpdest: analyzeJumpdests(code),
		Msg:      msg,
		Stack:    NewStack(),
		Memory:   NewMemory(),
		Gas:      gas,
		Static:   static,
	}
}

// analyzeJumpdests scans code once per distinct code hash, marking every
// byte offset holding a JUMPDEST opcode not embedded in a preceding
// PUSH's immediate data, and caches the result for reuse by later
// instances running the same bytecode.
func analyzeJumpdests(code []byte) *roaring.Bitmap {
	hash := crypto.Keccak256Hash(code)
	if bm, ok := jumpdestCache.Get(hash); ok {
		return bm
	}

	bm := roaring.New()
	for i := 0; i < len(code); i++ {
		op := OpCode(code[i])
		if op == JUMPDEST {
			bm.Add(uint32(i))
			continue
		}
		if op.IsPush() {
			i += int(op - PUSH0)
		}
	}
	jumpdestCache.Add(hash, bm)
	return bm
}

// validJumpDest reports whether pc is a JUMPDEST reachable by JUMP/JUMPI.
func (f *Frame) validJumpDest(pc uint64) bool {
	if pc > math.MaxUint32 {
		return false
	}
	return f.jumpdest.Contains(uint32(pc))
}

// useGas deducts amount from the frame's remaining gas, failing with
// ErrOutOfGasErr rather than letting Gas go negative.
func (f *Frame) useGas(amount uint64) error {
	if f.Gas < amount {
		return ErrOutOfGasErr
	}
	f.Gas -= amount
	return nil
}

// expandMemory charges the quadratic expansion cost to grow memory to
// cover [offset, offset+size). The actual grow happens lazily inside the
// subsequent Memory call; this only charges the gas for it.
func (f *Frame) expandMemory(offset, size uint64) error {
	if size == 0 {
		return nil
	}
	end := offset + size
	if end < offset {
		return ErrMemorySizeOverflow
	}
	cost, err := f.Memory.ExpansionCost(end)
	if err != nil {
		return err
	}
	return f.useGas(cost)
}

// codeAt returns the opcode at pc, treating any pc past the end of code
// as an implicit STOP, per the EVM convention.
func (f *Frame) codeAt(pc uint64) OpCode {
	if pc >= uint64(len(f.Code)) {
		return STOP
	}
	return OpCode(f.Code[pc])
}

// CodeSlice returns length bytes of code starting at offset, zero-padded
// past the end of code, matching CODECOPY/EXTCODECOPY semantics.
func CodeSlice(code []byte, offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(code)) {
		return out
	}
	end := offset + length
	if end > uint64(len(code)) {
		end = uint64(len(code))
	}
	copy(out, code[offset:end])
	return out
}
