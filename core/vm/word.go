package vm

// word.go implements the 256-bit arithmetic layer described by the core's
// data model: a single value type with EVM wrapping/signed/modular
// semantics. Rather than hand-rolling limb arithmetic on math/big, Word is
// an alias over github.com/holiman/uint256.Int, which already implements
// every EVM arithmetic convention natively (wrapping add/sub/mul, 0-result
// division by zero, two's-complement signed ops, shift saturation at
// shift >= 256). Only address/byte conversions and the wide multiply are
// added here.

import (
	"math/big"

	"github.com/batchvm/batchvm/core/types"
	"github.com/holiman/uint256"
)

// Word is the EVM's native 256-bit unsigned integer.
type Word = uint256.Int

// ZeroWord returns a fresh zero-valued Word.
func ZeroWord() Word {
	return Word{}
}

// NewWord returns a Word initialized from a uint64.
func NewWord(v uint64) Word {
	return *uint256.NewInt(v)
}

// WordFromBytes sets a Word from a big-endian byte slice, matching
// CALLDATALOAD/PUSH semantics (short input is left-padded with zero).
func WordFromBytes(b []byte) Word {
	var w Word
	w.SetBytes(b)
	return w
}

// WordFromAddress widens a 20-byte address into a Word (zero-extended).
func WordFromAddress(addr types.Address) Word {
	var w Word
	w.SetBytes(addr[:])
	return w
}

// ToAddress narrows a Word to its low 160 bits, the EVM convention for
// converting a stack value to an address (e.g. CALL's callee operand).
func ToAddress(w Word) types.Address {
	b := w.Bytes32()
	return types.BytesToAddress(b[12:])
}

// ToHash reinterprets a Word as a 32-byte big-endian Hash, the storage
// key/value convention.
func ToHash(w Word) types.Hash {
	return types.Hash(w.Bytes32())
}

// WordFromHash widens a Hash into a Word.
func WordFromHash(h types.Hash) Word {
	var w Word
	w.SetBytes(h[:])
	return w
}

// WideMul computes the full 512-bit product of x and y, split into a high
// and low Word (hi holding the most significant 256 bits). uint256.Int has
// no public 512-bit multiply primitive, so this single utility function is
// built on math/big rather than the vendored 256-bit type; it is not on
// any hot path (EVM opcodes never need more than MulMod's 256-bit modular
// product, which uint256 already provides directly).
func WideMul(x, y Word) (hi, lo Word) {
	xb, yb := x.ToBig(), y.ToBig()
	product := new(big.Int).Mul(xb, yb)

	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	loBig := new(big.Int).Mod(product, mod)
	hiBig := new(big.Int).Rsh(product, 256)

	lo.SetFromBig(loBig)
	hi.SetFromBig(hiBig)
	return hi, lo
}

// SetFromBig sets z from a big.Int, wrapping modulo 2^256 (discarding any
// overflow), matching the EVM's silent-wraparound convention.
func SetFromBig(z *Word, b *big.Int) {
	z.SetFromBig(b)
}
