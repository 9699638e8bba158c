package vm

// message.go implements the immutable per-frame call inputs. CallType and
// the frame-type vocabulary are grounded on call_frame.go's
// (CallFrameType / FrameCall / FrameStaticCall / ...), renamed here to
// CallType to match the data model's "call-type" terminology; input_slice
// bounds handling follows the explicit overflow-checked style of
// evm_returndata.go's Copy/ValidateReturnDataCopy.

import "github.com/batchvm/batchvm/core/types"

// CallType enumerates the ways one frame can invoke another.
type CallType uint8

const (
	CallTypeCall CallType = iota
	CallTypeCallCode
	CallTypeDelegateCall
	CallTypeStaticCall
	CallTypeCreate
	CallTypeCreate2
)

func (t CallType) String() string {
	switch t {
	case CallTypeCall:
		return "CALL"
	case CallTypeCallCode:
		return "CALLCODE"
	case CallTypeDelegateCall:
		return "DELEGATECALL"
	case CallTypeStaticCall:
		return "STATICCALL"
	case CallTypeCreate:
		return "CREATE"
	case CallTypeCreate2:
		return "CREATE2"
	default:
		return "UNKNOWN"
	}
}

// IsCreate reports whether this call type is a contract creation.
func (t CallType) IsCreate() bool {
	return t == CallTypeCreate || t == CallTypeCreate2
}

// MaxCallDepth is the EVM's hard call-depth limit.
const MaxCallDepth = 1024

// Message holds the immutable inputs to one call frame: caller, callee,
// value, input data, gas limit, depth, and call type, plus the
// transaction-wide origin and gas price carried unchanged through nesting.
type Message struct {
	Origin   types.Address // tx.origin, unchanged across all frames of a tx
	GasPrice Word          // unchanged across all frames of a tx

	Caller types.Address
	To     types.Address // zero in a top-level CREATE/CREATE2 message; the new contract's address in a creation frame's message
	Value  Word
	Data   []byte
	Gas    uint64
	Depth  int
	Type   CallType
}

// InputSlice returns up to length bytes of Data starting at offset,
// matching CALLDATALOAD/CALLDATACOPY semantics: reads past the end of
// Data are zero-padded by the caller, and offset+length overflowing the
// address space yields an empty, available=0 result rather than an error.
func (m *Message) InputSlice(offset, length uint64) (data []byte, available uint64) {
	dataLen := uint64(len(m.Data))
	if offset >= dataLen {
		return nil, 0
	}
	end := offset + length
	if end < offset || end > dataLen {
		end = dataLen
	}
	available = end - offset
	if available > length {
		available = length
	}
	return m.Data[offset : offset+available], available
}

// StaticContext reports whether this frame (or any ancestor) forbids
// state-mutating opcodes. The caller is responsible for propagating
// static-ness down the call stack; Message itself only carries whether
// this particular frame was entered via STATICCALL.
func (m *Message) StaticContext() bool {
	return m.Type == CallTypeStaticCall
}
