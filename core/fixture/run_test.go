package fixture

import (
	"testing"

	"github.com/batchvm/batchvm/core/types"
	"github.com/batchvm/batchvm/core/vm"
)

func TestRunExecutesInstanceAgainstPreState(t *testing.T) {
	callee := types.HexToAddress("0x1000000000000000000000000000000000000001")
	world := newPreStateWorld(map[string]rawAccount{
		callee.Hex(): {Code: "0x600160020160005260206000f3"}, // PUSH1 1 PUSH1 2 ADD MSTORE RETURN
	})

	inst := &Instance{
		Name:  "add",
		Index: Index{},
		Block: vm.BlockContext{},
		World: world,
		Msg:   &vm.Message{To: callee, Gas: 100000, Type: vm.CallTypeCall},
	}

	result := Run(inst)
	if result.Outcome.ErrCode != vm.ErrNone {
		t.Fatalf("ErrCode = %v, want ErrNone", result.Outcome.ErrCode)
	}
	if len(result.Outcome.Output) != 32 || result.Outcome.Output[31] != 3 {
		t.Fatalf("Output = %x, want a word encoding 3", result.Outcome.Output)
	}
	if result.Trace.Len() == 0 {
		t.Fatal("Trace is empty after Run")
	}
	if result.Instance != inst {
		t.Fatal("Result.Instance does not point back to the original instance")
	}
}

func TestRunCompletesSelfdestructingInstance(t *testing.T) {
	callee := types.HexToAddress("0x1000000000000000000000000000000000000001")
	beneficiary := types.HexToAddress("0x2000000000000000000000000000000000000002")
	world := newPreStateWorld(map[string]rawAccount{
		callee.Hex(): {Balance: "0x64", Code: "0x" + selfdestructCodeHex(beneficiary)},
	})

	inst := &Instance{
		World: world,
		Block: vm.BlockContext{},
		Msg:   &vm.Message{To: callee, Gas: 100000, Type: vm.CallTypeCall},
	}
	result := Run(inst)
	if result.Outcome.ErrCode != vm.ErrNone {
		t.Fatalf("ErrCode = %v, want ErrNone", result.Outcome.ErrCode)
	}
}

// selfdestructCodeHex returns PUSH20 <beneficiary> SELFDESTRUCT as hex, with
// no leading 0x.
func selfdestructCodeHex(beneficiary types.Address) string {
	const push20 = "73"
	b := beneficiary.Bytes()
	hexBytes := make([]byte, 0, len(b)*2)
	for _, v := range b {
		hexBytes = append(hexBytes, hexDigit(v>>4), hexDigit(v&0xf))
	}
	return push20 + string(hexBytes) + "ff"
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'a' + (v - 10)
}
