package vm

// jump_table.go implements opcode dispatch: a flat [256]instruction array
// indexed by opcode byte. This collapses a per-fork jump table
// progression (NewFrontierJumpTable through NewPragueJumpTable, each a
// copy-and-patch of the previous operation table) into the single table
// this interpreter needs, since nothing here models fork history. Each
// instruction pops its own operands, charges its own gas (constant and
// dynamic together, rather than separate constantGas/dynamicGas/
// memorySize operation fields), and advances the program counter.

import "github.com/batchvm/batchvm/crypto"

// instruction executes one opcode against the current frame. It returns
// the frame's final output and halt=true for STOP/RETURN/REVERT/
// SELFDESTRUCT; err classifies an abnormal termination (gas, stack,
// memory, jump, or static-write faults).
type instruction func(in *Interpreter, f *Frame) (output []byte, halt bool, err error)

// JumpTable is the opcode dispatch table; a nil entry is an undefined
// opcode.
type JumpTable [256]instruction

// NewJumpTable builds the dispatch table used by every Interpreter.
func NewJumpTable() *JumpTable {
	var t JumpTable

	t[STOP] = opStop
	t[ADD] = binOp(func(z, x, y *Word) { z.Add(x, y) }, GasVerylow)
	t[MUL] = binOp(func(z, x, y *Word) { z.Mul(x, y) }, GasLow)
	t[SUB] = binOp(func(z, x, y *Word) { z.Sub(x, y) }, GasVerylow)
	t[DIV] = binOp(func(z, x, y *Word) { z.Div(x, y) }, GasLow)
	t[SDIV] = binOp(func(z, x, y *Word) { z.SDiv(x, y) }, GasLow)
	t[MOD] = binOp(func(z, x, y *Word) { z.Mod(x, y) }, GasLow)
	t[SMOD] = binOp(func(z, x, y *Word) { z.SMod(x, y) }, GasLow)
	t[ADDMOD] = triOp(func(z, x, y, m *Word) { z.AddMod(x, y, m) }, GasMid)
	t[MULMOD] = triOp(func(z, x, y, m *Word) { z.MulMod(x, y, m) }, GasMid)
	t[EXP] = opExp
	t[SIGNEXTEND] = binOp(func(z, x, y *Word) { z.ExtendSign(y, x) }, GasLow)

	t[LT] = boolOp(func(x, y *Word) bool { return x.Lt(y) }, GasVerylow)
	t[GT] = boolOp(func(x, y *Word) bool { return x.Gt(y) }, GasVerylow)
	t[SLT] = boolOp(func(x, y *Word) bool { return x.Slt(y) }, GasVerylow)
	t[SGT] = boolOp(func(x, y *Word) bool { return x.Sgt(y) }, GasVerylow)
	t[EQ] = boolOp(func(x, y *Word) bool { return x.Eq(y) }, GasVerylow)
	t[ISZERO] = opIsZero
	t[AND] = binOp(func(z, x, y *Word) { z.And(x, y) }, GasVerylow)
	t[OR] = binOp(func(z, x, y *Word) { z.Or(x, y) }, GasVerylow)
	t[XOR] = binOp(func(z, x, y *Word) { z.Xor(x, y) }, GasVerylow)
	t[NOT] = opNot
	t[BYTE] = binOp(func(z, x, y *Word) { z.Byte(x) }, GasVerylow)
	t[SHL] = binOp(func(z, shift, val *Word) { z.Lsh(val, uintShift(shift)) }, GasVerylow)
	t[SHR] = binOp(func(z, shift, val *Word) { z.Rsh(val, uintShift(shift)) }, GasVerylow)
	t[SAR] = binOp(func(z, shift, val *Word) { z.SRsh(val, uintShift(shift)) }, GasVerylow)

	t[KECCAK256] = opKeccak256

	t[ADDRESS] = opAddress
	t[BALANCE] = opBalance
	t[ORIGIN] = opOrigin
	t[CALLER] = opCaller
	t[CALLVALUE] = opCallValue
	t[CALLDATALOAD] = opCallDataLoad
	t[CALLDATASIZE] = opCallDataSize
	t[CALLDATACOPY] = opCallDataCopy
	t[CODESIZE] = opCodeSize
	t[CODECOPY] = opCodeCopy
	t[GASPRICE] = opGasPrice
	t[EXTCODESIZE] = opExtCodeSize
	t[EXTCODECOPY] = opExtCodeCopy
	t[RETURNDATASIZE] = opReturnDataSize
	t[RETURNDATACOPY] = opReturnDataCopy
	t[EXTCODEHASH] = opExtCodeHash

	t[BLOCKHASH] = opBlockHash
	t[COINBASE] = opCoinbase
	t[TIMESTAMP] = opTimestamp
	t[NUMBER] = opNumber
	t[PREVRANDAO] = opPrevRandao
	t[GASLIMIT] = opGasLimit
	t[CHAINID] = opChainID
	t[SELFBALANCE] = opSelfBalance
	t[BASEFEE] = opBaseFee
	t[BLOBHASH] = opBlobHash
	t[BLOBBASEFEE] = opBlobBaseFee

	t[POP] = opPop
	t[MLOAD] = opMload
	t[MSTORE] = opMstore
	t[MSTORE8] = opMstore8
	t[SLOAD] = opSload
	t[SSTORE] = opSstore
	t[TLOAD] = opTload
	t[TSTORE] = opTstore
	t[JUMP] = opJump
	t[JUMPI] = opJumpi
	t[PC] = opPC
	t[MSIZE] = opMsize
	t[GAS] = opGas
	t[JUMPDEST] = opJumpdest
	t[MCOPY] = opMcopy

	for i := 0; i < 32; i++ {
		t[int(PUSH1)+i] = makePush(i + 1)
	}
	t[PUSH0] = makePush(0)
	for i := 0; i < 16; i++ {
		t[int(DUP1)+i] = makeDup(i + 1)
	}
	for i := 0; i < 16; i++ {
		t[int(SWAP1)+i] = makeSwap(i + 1)
	}

	for i := 0; i < 5; i++ {
		t[int(LOG0)+i] = makeLog(i)
	}

	t[CREATE] = opCreate
	t[CALL] = opCall
	t[CALLCODE] = opCallCode
	t[RETURN] = opReturn
	t[DELEGATECALL] = opDelegateCall
	t[CREATE2] = opCreate2
	t[STATICCALL] = opStaticCall
	t[REVERT] = opRevert
	t[INVALID] = opInvalid
	t[SELFDESTRUCT] = opSelfdestruct

	return &t
}

// --- arithmetic / comparison / bitwise helpers ---

func binOp(fn func(z, x, y *Word), gas uint64) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, gas); err != nil {
			return nil, false, err
		}
		x, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		y, err := f.Stack.PeekPtr(0)
		if err != nil {
			return nil, false, err
		}
		fn(y, &x, y)
		f.PC++
		return nil, false, nil
	}
}

func triOp(fn func(z, x, y, m *Word), gas uint64) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, gas); err != nil {
			return nil, false, err
		}
		x, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		y, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		m, err := f.Stack.PeekPtr(0)
		if err != nil {
			return nil, false, err
		}
		fn(m, &x, &y, m)
		f.PC++
		return nil, false, nil
	}
}

func boolOp(fn func(x, y *Word) bool, gas uint64) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, gas); err != nil {
			return nil, false, err
		}
		x, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		y, err := f.Stack.PeekPtr(0)
		if err != nil {
			return nil, false, err
		}
		result := fn(&x, y)
		if result {
			*y = NewWord(1)
		} else {
			*y = ZeroWord()
		}
		f.PC++
		return nil, false, nil
	}
}

func uintShift(shift *Word) uint {
	if shift.BitLen() > 64 {
		return 256
	}
	return uint(shift.Uint64())
}

func opIsZero(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	x, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	zero := x.IsZero()
	if zero {
		*x = NewWord(1)
	} else {
		*x = ZeroWord()
	}
	f.PC++
	return nil, false, nil
}

func opNot(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	x, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	x.Not(x)
	f.PC++
	return nil, false, nil
}

func opExp(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasHigh); err != nil {
		return nil, false, err
	}
	base, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	exponent, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	if err := in.charge(f, ExpGas(*exponent)); err != nil {
		return nil, false, err
	}
	exponent.Exp(&base, exponent)
	f.PC++
	return nil, false, nil
}

// --- KECCAK256 ---

func opKeccak256(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	size, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	off, sz := offset.Uint64(), size.Uint64()
	if err := f.expandMemory(off, sz); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, Sha3Gas(sz)); err != nil {
		return nil, false, err
	}
	data := f.Memory.Read(off, sz)
	hash := crypto.Keccak256(data)
	size.SetBytes(hash)
	f.PC++
	return nil, false, nil
}

// --- environment opcodes ---

func opAddress(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(WordFromAddress(f.Address)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opBalance(in *Interpreter, f *Frame) ([]byte, bool, error) {
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	addr := ToAddress(addrWord)
	warm := in.Journal.TouchAddress(addr)
	cost := uint64(GasBalanceWarm)
	if !warm {
		cost = GasBalanceCold
	}
	if err := in.charge(f, cost); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(in.Journal.GetBalance(addr)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opOrigin(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(WordFromAddress(f.Msg.Origin)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCaller(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(WordFromAddress(f.Msg.Caller)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCallValue(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(f.Msg.Value); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCallDataLoad(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	data, _ := f.Msg.InputSlice(offset.Uint64(), 32)
	var padded [32]byte
	copy(padded[:], data)
	if err := f.Stack.Push(WordFromBytes(padded[:])); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCallDataSize(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(uint64(len(f.Msg.Data)))); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCallDataCopy(in *Interpreter, f *Frame) ([]byte, bool, error) {
	destOffset, err := f.Stack.Pop()
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
	dest, sz := destOffset.Uint64(), size.Uint64()
	if err := f.expandMemory(dest, sz); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, CopyGas(sz)); err != nil {
		return nil, false, err
	}
	data, avail := f.Msg.InputSlice(offset.Uint64(), sz)
	buf := make([]byte, sz)
	copy(buf, data[:avail])
	if err := f.Memory.Write(dest, buf); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCodeSize(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(uint64(len(f.Code)))); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCodeCopy(in *Interpreter, f *Frame) ([]byte, bool, error) {
	destOffset, err := f.Stack.Pop()
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
	dest, sz := destOffset.Uint64(), size.Uint64()
	if err := f.expandMemory(dest, sz); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, CopyGas(sz)); err != nil {
		return nil, false, err
	}
	buf := CodeSlice(f.Code, offset.Uint64(), sz)
	if err := f.Memory.Write(dest, buf); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opGasPrice(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(f.Msg.GasPrice); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opExtCodeSize(in *Interpreter, f *Frame) ([]byte, bool, error) {
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	addr := ToAddress(addrWord)
	warm := in.Journal.TouchAddress(addr)
	cost := uint64(GasBalanceWarm)
	if !warm {
		cost = GasBalanceCold
	}
	if err := in.charge(f, cost); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(uint64(len(in.Journal.GetCode(addr))))); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opExtCodeCopy(in *Interpreter, f *Frame) ([]byte, bool, error) {
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	destOffset, err := f.Stack.Pop()
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
	addr := ToAddress(addrWord)
	warm := in.Journal.TouchAddress(addr)
	cost := uint64(GasBalanceWarm)
	if !warm {
		cost = GasBalanceCold
	}
	if err := in.charge(f, cost); err != nil {
		return nil, false, err
	}
	dest, sz := destOffset.Uint64(), size.Uint64()
	if err := f.expandMemory(dest, sz); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, CopyGas(sz)); err != nil {
		return nil, false, err
	}
	buf := CodeSlice(in.Journal.GetCode(addr), offset.Uint64(), sz)
	if err := f.Memory.Write(dest, buf); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opReturnDataSize(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(uint64(len(f.LastReturnData)))); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opReturnDataCopy(in *Interpreter, f *Frame) ([]byte, bool, error) {
	destOffset, err := f.Stack.Pop()
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
	off, sz := offset.Uint64(), size.Uint64()
	if off+sz < off || off+sz > uint64(len(f.LastReturnData)) {
		return nil, false, ErrReturnDataOutOfBounds
	}
	dest := destOffset.Uint64()
	if err := f.expandMemory(dest, sz); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, CopyGas(sz)); err != nil {
		return nil, false, err
	}
	if err := f.Memory.Write(dest, f.LastReturnData[off:off+sz]); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opExtCodeHash(in *Interpreter, f *Frame) ([]byte, bool, error) {
	addrWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	addr := ToAddress(addrWord)
	warm := in.Journal.TouchAddress(addr)
	cost := uint64(GasBalanceWarm)
	if !warm {
		cost = GasBalanceCold
	}
	if err := in.charge(f, cost); err != nil {
		return nil, false, err
	}
	var result Word
	if in.Journal.Exists(addr) {
		code := in.Journal.GetCode(addr)
		result.SetBytes(crypto.Keccak256(code))
	}
	if err := f.Stack.Push(result); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

// --- block info opcodes ---

func opBlockHash(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasExt); err != nil {
		return nil, false, err
	}
	if _, err := f.Stack.Pop(); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(ZeroWord()); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opCoinbase(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(WordFromAddress(in.Block.Coinbase)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opTimestamp(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(in.Block.Timestamp)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opNumber(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(in.Block.Number)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opPrevRandao(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(WordFromHash(in.Block.PrevRandao)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opGasLimit(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(in.Block.GasLimit)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opChainID(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(in.Block.ChainID)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opSelfBalance(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasLow); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(in.Journal.GetBalance(f.Address)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opBaseFee(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(in.Block.BaseFee); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opBlobHash(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	idx, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	*idx = ZeroWord()
	f.PC++
	return nil, false, nil
}

func opBlobBaseFee(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(in.Block.BlobBaseFee); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

// --- stack / memory / storage / flow ---

func opPop(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if _, err := f.Stack.Pop(); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opMload(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	off := offset.Uint64()
	if err := f.expandMemory(off, 32); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	offset.SetBytes(f.Memory.Read(off, 32))
	f.PC++
	return nil, false, nil
}

func opMstore(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	off := offset.Uint64()
	if err := f.expandMemory(off, 32); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	b := value.Bytes32()
	if err := f.Memory.Write(off, b[:]); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opMstore8(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	off := offset.Uint64()
	if err := f.expandMemory(off, 1); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, GasVerylow); err != nil {
		return nil, false, err
	}
	if err := f.Memory.WriteByte(off, byte(value.Uint64())); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opSload(in *Interpreter, f *Frame) ([]byte, bool, error) {
	key, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	_, slotWarm := in.Journal.TouchSlot(f.Address, *key)
	cost := uint64(GasSloadWarm)
	if !slotWarm {
		cost = GasSloadCold
	}
	if err := in.charge(f, cost); err != nil {
		return nil, false, err
	}
	*key = in.Journal.ReadStorage(f.Address, *key)
	f.PC++
	return nil, false, nil
}

func opSstore(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if f.Static {
		return nil, false, ErrWriteProtection
	}
	key, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	_, slotWarm := in.Journal.TouchSlot(f.Address, key)
	original, current := in.Journal.WriteStorage(f.Address, key, value)
	gas, refund := SstoreGas(original, current, value, !slotWarm)
	if err := in.charge(f, gas); err != nil {
		return nil, false, err
	}
	if refund != 0 {
		in.Journal.AddRefund(refund)
	}
	f.PC++
	return nil, false, nil
}

// opTload and opTstore implement EIP-1153 transient storage: a per-
// transaction scratch space that behaves like SLOAD/SSTORE but is never
// warm/cold metered, never charged a dirty-slot refund, and never
// persisted past the instance's journal.
func opTload(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasSloadWarm); err != nil {
		return nil, false, err
	}
	key, err := f.Stack.PeekPtr(0)
	if err != nil {
		return nil, false, err
	}
	*key = in.Journal.ReadTransient(f.Address, *key)
	f.PC++
	return nil, false, nil
}

func opTstore(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if f.Static {
		return nil, false, ErrWriteProtection
	}
	if err := in.charge(f, GasSloadWarm); err != nil {
		return nil, false, err
	}
	key, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	value, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	in.Journal.WriteTransient(f.Address, key, value)
	f.PC++
	return nil, false, nil
}

func opJump(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasMid); err != nil {
		return nil, false, err
	}
	dest, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	if dest.BitLen() > 64 {
		return nil, false, ErrInvalidJumpErr
	}
	pc := dest.Uint64()
	if !f.validJumpDest(pc) {
		return nil, false, ErrInvalidJumpErr
	}
	f.PC = pc
	return nil, false, nil
}

func opJumpi(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasHigh); err != nil {
		return nil, false, err
	}
	dest, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	cond, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	if cond.IsZero() {
		f.PC++
		return nil, false, nil
	}
	if dest.BitLen() > 64 {
		return nil, false, ErrInvalidJumpErr
	}
	pc := dest.Uint64()
	if !f.validJumpDest(pc) {
		return nil, false, ErrInvalidJumpErr
	}
	f.PC = pc
	return nil, false, nil
}

func opPC(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(f.PC)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opMsize(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(f.Memory.Len())); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opGas(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasBase); err != nil {
		return nil, false, err
	}
	if err := f.Stack.Push(NewWord(f.Gas)); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opJumpdest(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if err := in.charge(f, GasJumpDest); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

func opMcopy(in *Interpreter, f *Frame) ([]byte, bool, error) {
	dest, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	src, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	d, s, sz := dest.Uint64(), src.Uint64(), size.Uint64()
	end1, end2 := d+sz, s+sz
	maxEnd := end1
	if end2 > maxEnd {
		maxEnd = end2
	}
	if err := f.expandMemory(0, maxEnd); err != nil {
		return nil, false, err
	}
	if err := in.charge(f, CopyGas(sz)); err != nil {
		return nil, false, err
	}
	if err := f.Memory.Copy(d, s, sz); err != nil {
		return nil, false, err
	}
	f.PC++
	return nil, false, nil
}

// --- PUSH / DUP / SWAP ---

func makePush(n int) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, GasVerylow); err != nil {
			return nil, false, err
		}
		data := CodeSlice(f.Code, f.PC+1, uint64(n))
		if err := f.Stack.Push(WordFromBytes(data)); err != nil {
			return nil, false, err
		}
		f.PC += uint64(n) + 1
		return nil, false, nil
	}
}

func makeDup(n int) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, GasVerylow); err != nil {
			return nil, false, err
		}
		if err := f.Stack.Dup(n); err != nil {
			return nil, false, err
		}
		f.PC++
		return nil, false, nil
	}
}

func makeSwap(n int) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if err := in.charge(f, GasVerylow); err != nil {
			return nil, false, err
		}
		if err := f.Stack.Swap(n); err != nil {
			return nil, false, err
		}
		f.PC++
		return nil, false, nil
	}
}

// --- LOG ---

func makeLog(numTopics int) instruction {
	return func(in *Interpreter, f *Frame) ([]byte, bool, error) {
		if f.Static {
			return nil, false, ErrWriteProtection
		}
		offset, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		size, err := f.Stack.Pop()
		if err != nil {
			return nil, false, err
		}
		for i := 0; i < numTopics; i++ {
			if _, err := f.Stack.Pop(); err != nil {
				return nil, false, err
			}
		}
		off, sz := offset.Uint64(), size.Uint64()
		if err := f.expandMemory(off, sz); err != nil {
			return nil, false, err
		}
		if err := in.charge(f, LogGas(uint64(numTopics), sz)); err != nil {
			return nil, false, err
		}
		_ = f.Memory.Read(off, sz) // materializes the logged region; the entry itself rides in the trace, not a separate log list
		f.PC++
		return nil, false, nil
	}
}

// --- terminal opcodes ---

func opStop(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return nil, true, nil
}

func opReturn(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	off, sz := offset.Uint64(), size.Uint64()
	if err := f.expandMemory(off, sz); err != nil {
		return nil, false, err
	}
	return f.Memory.Read(off, sz), true, nil
}

func opRevert(in *Interpreter, f *Frame) ([]byte, bool, error) {
	offset, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	size, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	off, sz := offset.Uint64(), size.Uint64()
	if err := f.expandMemory(off, sz); err != nil {
		return nil, false, err
	}
	return f.Memory.Read(off, sz), true, nil
}

func opInvalid(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return nil, false, ErrInvalidOpcodeErr
}

func opSelfdestruct(in *Interpreter, f *Frame) ([]byte, bool, error) {
	if f.Static {
		return nil, false, ErrWriteProtection
	}
	beneficiaryWord, err := f.Stack.Pop()
	if err != nil {
		return nil, false, err
	}
	beneficiary := ToAddress(beneficiaryWord)
	warm := in.Journal.TouchAddress(beneficiary)
	if !warm {
		if err := in.charge(f, GasBalanceCold); err != nil {
			return nil, false, err
		}
	}
	if err := in.charge(f, GasSelfdestruct); err != nil {
		return nil, false, err
	}
	in.Journal.Selfdestruct(f.Address, beneficiary)
	return nil, true, nil
}

// --- CALL family / CREATE family: thin adapters to the interpreter's
// shared recursive-call implementation. ---

func opCall(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCall(f, CallTypeCall)
}

func opCallCode(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCall(f, CallTypeCallCode)
}

func opDelegateCall(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCall(f, CallTypeDelegateCall)
}

func opStaticCall(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCall(f, CallTypeStaticCall)
}

func opCreate(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCreate(f, false)
}

func opCreate2(in *Interpreter, f *Frame) ([]byte, bool, error) {
	return in.execCreate(f, true)
}
