package vm

// interpreter.go implements per-instance opcode execution: the fetch-
// decode-execute loop, gas metering, and the recursive CALL/CALLCODE/
// DELEGATECALL/STATICCALL/CREATE/CREATE2 call machinery. It generalizes
// an EVM.Run/EVM.Call/EVM.Create family into a single recursive
// runFrame that shares one Journal and one Trace across nested frames
// instead of a StateDB snapshot/revert pair per call; the CREATE address
// derivation keeps a minimal RLP encoder (encodeRLPBytes/encodeRLPUint/
// wrapRLPList), since this module's dependency stack carries no RLP
// library of its own.

import (
	"github.com/batchvm/batchvm/core/types"
	"github.com/batchvm/batchvm/crypto"
)

// BlockContext carries the fixed, instance-independent environment
// values exposed by the block-info opcodes (COINBASE, TIMESTAMP, ...).
// One BlockContext is shared read-only across every instance in a batch.
type BlockContext struct {
	Coinbase    types.Address
	Timestamp   uint64
	Number      uint64
	PrevRandao  types.Hash
	GasLimit    uint64
	ChainID     uint64
	BaseFee     Word
	BlobBaseFee Word
}

// Interpreter runs bytecode for a single instance against one Journal and
// one Trace. Not safe for concurrent use; each instance owns its own
// Interpreter, Journal, and Trace.
type Interpreter struct {
	Journal *Journal
	Trace   *Trace
	Block   BlockContext
	Table   *JumpTable

	GasLimit     uint64 // the message's original gas limit, recorded verbatim into every trace entry
	totalGasUsed uint64
}

// NewInterpreter builds an Interpreter for one instance.
func NewInterpreter(journal *Journal, trace *Trace, block BlockContext) *Interpreter {
	return &Interpreter{
		Journal: journal,
		Trace:   trace,
		Block:   block,
		Table:   NewJumpTable(),
	}
}

// Outcome is the result of running a top-level message to completion.
type Outcome struct {
	Output    []byte
	GasUsed   uint64
	GasRefund uint64
	Reverted  bool
	ErrCode   ErrorCode
}

// Run executes msg as the top-level call (or creation) of a transaction.
// The caller is expected to have taken its own journal snapshot beforehand
// if it wants the option of discarding the whole instance; Run commits or
// reverts only the sub-snapshot it takes around the message itself.
func (in *Interpreter) Run(msg *Message) Outcome {
	in.GasLimit = msg.Gas
	in.totalGasUsed = 0

	if msg.Type.IsCreate() {
		return in.runCreateTx(msg)
	}

	snap := in.Journal.Snapshot()
	if !msg.Value.IsZero() {
		if in.Journal.GetBalance(msg.Caller).Lt(&msg.Value) {
			in.Journal.Revert(snap)
			return Outcome{ErrCode: ErrInsufficientBal, GasUsed: msg.Gas}
		}
		in.Journal.SubBalance(msg.Caller, msg.Value)
		in.Journal.AddBalance(msg.To, msg.Value)
	}

	code := in.Journal.GetCode(msg.To)
	frame := NewFrame(msg.To, msg.To, code, msg, msg.Gas, msg.Type == CallTypeStaticCall)
	output, reverted, errCode := in.runFrame(frame)
	gasUsed := in.totalGasUsed

	switch {
	case errCode == ErrNone:
		in.Journal.Commit(snap)
		return Outcome{Output: output, GasUsed: gasUsed, GasRefund: clampRefund(gasUsed, in.Journal.Refund()), ErrCode: ErrNone}
	case reverted:
		in.Journal.Revert(snap)
		return Outcome{Output: output, GasUsed: gasUsed, Reverted: true, ErrCode: ErrRevert}
	default:
		in.Journal.Revert(snap)
		return Outcome{GasUsed: msg.Gas, ErrCode: errCode}
	}
}

// runCreateTx handles a top-level CREATE/CREATE2 message: a transaction
// whose destination is computed from the sender rather than given.
func (in *Interpreter) runCreateTx(msg *Message) Outcome {
	snap := in.Journal.Snapshot()
	if !msg.Value.IsZero() && in.Journal.GetBalance(msg.Caller).Lt(&msg.Value) {
		in.Journal.Revert(snap)
		return Outcome{ErrCode: ErrInsufficientBal, GasUsed: msg.Gas}
	}

	nonce := in.Journal.GetNonce(msg.Caller)
	in.Journal.SetNonce(msg.Caller, nonce+1)
	addr := createAddress(msg.Caller, nonce)

	if !msg.Value.IsZero() {
		in.Journal.SubBalance(msg.Caller, msg.Value)
		in.Journal.AddBalance(addr, msg.Value)
	}
	in.Journal.SetNonce(addr, 1)

	childMsg := &Message{
		Origin: msg.Origin, GasPrice: msg.GasPrice,
		Caller: msg.Caller, To: addr, Value: msg.Value,
		Gas: msg.Gas, Depth: 0, Type: msg.Type,
	}
	frame := NewFrame(addr, addr, msg.Data, childMsg, msg.Gas, false)
	output, reverted, errCode := in.runFrame(frame)
	gasUsed := in.totalGasUsed

	switch {
	case errCode == ErrNone && len(output) <= MaxCodeSize:
		in.Journal.SetCode(addr, output)
		in.Journal.Commit(snap)
		packed := WordFromAddress(addr).Bytes32()
		return Outcome{Output: packed[:], GasUsed: gasUsed, GasRefund: clampRefund(gasUsed, in.Journal.Refund()), ErrCode: ErrNone}
	case reverted:
		in.Journal.Revert(snap)
		return Outcome{Output: output, GasUsed: gasUsed, Reverted: true, ErrCode: ErrRevert}
	default:
		in.Journal.Revert(snap)
		return Outcome{GasUsed: msg.Gas, ErrCode: ErrOutOfGas}
	}
}

// runFrame drives one frame's fetch-decode-execute loop to a halt,
// pushing one trace entry per retired instruction.
func (in *Interpreter) runFrame(f *Frame) (output []byte, reverted bool, errCode ErrorCode) {
	for {
		op := f.codeAt(f.PC)
		pcAtFetch := f.PC
		instr := in.Table[op]

		if instr == nil {
			in.pushTrace(f, pcAtFetch, op, ErrInvalidOpcode)
			return nil, false, ErrInvalidOpcode
		}
		if f.Static && isWriteOp(op) {
			in.pushTrace(f, pcAtFetch, op, ErrStaticViolation)
			return nil, false, ErrStaticViolation
		}

		out, halt, err := instr(in, f)
		if err != nil {
			ec := CodeFromError(err)
			in.pushTrace(f, pcAtFetch, op, ec)
			return nil, false, ec
		}
		in.pushTrace(f, pcAtFetch, op, ErrNone)
		if halt {
			if op == REVERT {
				return out, true, ErrRevert
			}
			return out, false, ErrNone
		}
	}
}

func (in *Interpreter) pushTrace(f *Frame, pc uint64, op OpCode, errCode ErrorCode) {
	var refund uint64
	if r := in.Journal.Refund(); r > 0 {
		refund = uint64(r)
	}
	in.Trace.Push(f.Address, pc, op, f.Stack, f.Memory, in.Journal, in.totalGasUsed, in.GasLimit, refund, errCode)
}

// charge deducts amount from the frame's gas and adds it to the
// instance-wide running total recorded into the trace.
func (in *Interpreter) charge(f *Frame, amount uint64) error {
	if err := f.useGas(amount); err != nil {
		return err
	}
	in.totalGasUsed += amount
	return nil
}

func isWriteOp(op OpCode) bool {
	switch op {
	case SSTORE, LOG0, LOG1, LOG2, LOG3, LOG4, CREATE, CREATE2, SELFDESTRUCT:
		return true
	}
	return false
}

func clampRefund(gasUsed uint64, refund int64) uint64 {
	if refund <= 0 {
		return 0
	}
	max := gasUsed / MaxRefundQuotient
	r := uint64(refund)
	if r > max {
		return max
	}
	return r
}

// execCall implements CALL, CALLCODE, DELEGATECALL, and STATICCALL, which
// differ only in argument count, value handling, and storage context.
func (in *Interpreter) execCall(f *Frame, callType CallType) ([]byte, bool, error) {
	gasArg, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	to := ToAddress(addrWord)

	value := ZeroWord()
	if callType == CallTypeCall || callType == CallTypeCallCode {
		value, err = f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
	}
	inOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	inSize, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	outOffset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	outSize, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}

	if callType == CallTypeCall && f.Static && !value.IsZero() {
		return nil, false, ErrWriteProtection
	}

	inOff, inSz := inOffset.Uint64(), inSize.Uint64()
	outOff, outSz := outOffset.Uint64(), outSize.Uint64()

	if err := f.expandMemory(inOff, inSz); err != nil {
		return nil, false, err
	}
	if err := f.expandMemory(outOff, outSz); err != nil {
		return nil, false, err
	}

	addrWarm := in.Journal.TouchAddress(to)
	accessCost := uint64(GasCallWarm)
	if !addrWarm {
		accessCost = GasCallCold
	}
	if err := in.charge(f, accessCost); err != nil {
		return nil, false, err
	}

	hasValue := (callType == CallTypeCall || callType == CallTypeCallCode) && !value.IsZero()
	transferCost := uint64(0)
	if hasValue {
		transferCost = GasCallValueTransfer
	}
	if callType == CallTypeCall && hasValue && !in.Journal.Exists(to) {
		transferCost = safeAdd(transferCost, GasCallNewAccount)
	}
	if err := in.charge(f, transferCost); err != nil {
		return nil, false, err
	}

	input := f.Memory.Read(inOff, inSz)

	forward := CallGas(f.Gas, gasArg.Uint64())
	if err := in.charge(f, forward); err != nil {
		return nil, false, err
	}
	if hasValue {
		forward = safeAdd(forward, GasCallStipend)
	}

	if f.Msg.Depth+1 > MaxCallDepth {
		f.Gas += forward
		f.LastReturnData = nil
		_ = f.Stack.Push(ZeroWord())
		f.PC++
		return nil, false, nil
	}
	if hasValue && in.Journal.GetBalance(f.Address).Lt(&value) {
		f.Gas += forward
		f.LastReturnData = nil
		_ = f.Stack.Push(ZeroWord())
		f.PC++
		return nil, false, nil
	}

	execAddr := to
	switch callType {
	case CallTypeCallCode, CallTypeDelegateCall:
		execAddr = f.Address
	}

	childMsg := &Message{
		Origin: f.Msg.Origin, GasPrice: f.Msg.GasPrice,
		Caller: f.Address, To: to, Value: value, Data: input,
		Gas: forward, Depth: f.Msg.Depth + 1, Type: callType,
	}
	if callType == CallTypeDelegateCall {
		childMsg.Caller = f.Msg.Caller
		childMsg.Value = f.Msg.Value
	}

	snap := in.Journal.Snapshot()
	if hasValue {
		in.Journal.SubBalance(f.Address, value)
		in.Journal.AddBalance(to, value)
	}

	code := in.Journal.GetCode(to)
	child := NewFrame(execAddr, to, code, childMsg, forward, f.Static || callType == CallTypeStaticCall)
	output, reverted, errCode := in.runFrame(child)

	f.Gas += child.Gas
	f.LastReturnData = output

	switch {
	case errCode == ErrNone:
		in.Journal.Commit(snap)
		_ = f.Stack.Push(NewWord(1))
	case reverted:
		in.Journal.Revert(snap)
		_ = f.Stack.Push(ZeroWord())
	default:
		in.Journal.Revert(snap)
		_ = f.Stack.Push(ZeroWord())
		f.LastReturnData = nil
	}

	if outSz > 0 && len(output) > 0 {
		copyLen := outSz
		if uint64(len(output)) < copyLen {
			copyLen = uint64(len(output))
		}
		data := make([]byte, outSz)
		copy(data, output[:copyLen])
		if err := f.Memory.Write(outOff, data); err != nil {
			return nil, false, err
		}
	}

	f.PC++
	return nil, false, nil
}

// execCreate implements CREATE and CREATE2.
func (in *Interpreter) execCreate(f *Frame, isCreate2 bool) ([]byte, bool, error) {
	if f.Static {
		return nil, false, ErrWriteProtection
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	var salt Word
	if isCreate2 {
		salt, err = f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
	}

	off, sz := offset.Uint64(), size.Uint64()
	if err := f.expandMemory(off, sz); err != nil {
		return nil, false, err
	}
	if sz > uint64(MaxInitCodeSize) {
		return nil, false, ErrMemorySizeOverflow
	}
	if isCreate2 {
		if err := in.charge(f, Sha3Gas(sz)); err != nil {
			return nil, false, err
		}
	}

	initCode := f.Memory.Read(off, sz)

	if in.Journal.GetBalance(f.Address).Lt(&value) || f.Msg.Depth+1 > MaxCallDepth {
		_ = f.Stack.Push(ZeroWord())
		f.PC++
		return nil, false, nil
	}

	nonce := in.Journal.GetNonce(f.Address)
	in.Journal.SetNonce(f.Address, nonce+1)

	var newAddr types.Address
	callType := CallTypeCreate
	if isCreate2 {
		newAddr = create2Address(f.Address, salt, initCode)
		callType = CallTypeCreate2
	} else {
		newAddr = createAddress(f.Address, nonce)
	}

	childGas := f.Gas - f.Gas/CallGasFraction
	if err := in.charge(f, childGas); err != nil {
		return nil, false, err
	}

	snap := in.Journal.Snapshot()
	in.Journal.SubBalance(f.Address, value)
	in.Journal.AddBalance(newAddr, value)
	in.Journal.SetNonce(newAddr, 1)

	childMsg := &Message{
		Origin: f.Msg.Origin, GasPrice: f.Msg.GasPrice,
		Caller: f.Address, To: newAddr, Value: value,
		Gas: childGas, Depth: f.Msg.Depth + 1, Type: callType,
	}
	child := NewFrame(newAddr, newAddr, initCode, childMsg, childGas, false)
	output, _, errCode := in.runFrame(child)

	f.Gas += child.Gas
	f.LastReturnData = output

	if errCode == ErrNone && len(output) <= MaxCodeSize {
		in.Journal.SetCode(newAddr, output)
		in.Journal.Commit(snap)
		_ = f.Stack.Push(WordFromAddress(newAddr))
	} else {
		in.Journal.Revert(snap)
		_ = f.Stack.Push(ZeroWord())
		f.LastReturnData = nil
	}
	f.PC++
	return nil, false, nil
}

// createAddress computes the CREATE address per the Yellow Paper:
// keccak256(rlp([sender, nonce]))[12:]. The minimal RLP encoder below is
// unused elsewhere in this module since nothing else needs RLP.
func createAddress(sender types.Address, nonce uint64) types.Address {
	addrEnc := encodeRLPBytes(sender[:])
	nonceEnc := encodeRLPUint(nonce)
	payload := append(addrEnc, nonceEnc...)
	data := wrapRLPList(payload)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

func encodeRLPBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	if len(b) < 56 {
		return append([]byte{byte(0x80 + len(b))}, b...)
	}
	lenBytes := uintToMinBytes(uint64(len(b)))
	header := append([]byte{byte(0xb7 + len(lenBytes))}, lenBytes...)
	return append(header, b...)
}

func encodeRLPUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	if v < 128 {
		return []byte{byte(v)}
	}
	b := uintToMinBytes(v)
	return append([]byte{byte(0x80 + len(b))}, b...)
}

func wrapRLPList(payload []byte) []byte {
	if len(payload) < 56 {
		return append([]byte{byte(0xc0 + len(payload))}, payload...)
	}
	lenBytes := uintToMinBytes(uint64(len(payload)))
	header := append([]byte{byte(0xf7 + len(lenBytes))}, lenBytes...)
	return append(header, payload...)
}

func uintToMinBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		if buf[i] != 0 || n > 0 {
			n = 8 - i
		}
	}
	return buf[8-n:]
}

// create2Address implements EIP-1014 exactly: keccak256(0xff ++ sender ++
// salt ++ keccak256(init_code))[12:].
func create2Address(sender types.Address, salt Word, initCode []byte) types.Address {
	saltBytes := salt.Bytes32()
	initHash := crypto.Keccak256(initCode)
	data := make([]byte, 0, 85)
	data = append(data, 0xff)
	data = append(data, sender[:]...)
	data = append(data, saltBytes[:]...)
	data = append(data, initHash...)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}
