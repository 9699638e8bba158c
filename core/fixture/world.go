package fixture

import (
	"github.com/batchvm/batchvm/core/types"
	"github.com/batchvm/batchvm/core/vm"
)

// preStateWorld is a vm.BaseWorld built once from a fixture's "pre"
// accounts. It is immutable after construction and safe to share
// read-only across every instance a fixture expands into, matching the
// concurrency model's shared-base-world policy.
type preStateWorld struct {
	accounts map[types.Address]preAccount
}

type preAccount struct {
	nonce   uint64
	balance vm.Word
	code    []byte
	storage map[vm.Word]vm.Word
}

func newPreStateWorld(raw map[string]rawAccount) *preStateWorld {
	accounts := make(map[types.Address]preAccount, len(raw))
	for addrHex, acct := range raw {
		storage := make(map[vm.Word]vm.Word, len(acct.Storage))
		for keyHex, valHex := range acct.Storage {
			storage[wordFromHex(keyHex)] = wordFromHex(valHex)
		}
		accounts[hexToAddress(addrHex)] = preAccount{
			nonce:   hexToUint64(acct.Nonce),
			balance: wordFromHex(acct.Balance),
			code:    hexToBytes(acct.Code),
			storage: storage,
		}
	}
	return &preStateWorld{accounts: accounts}
}

func (w *preStateWorld) Account(addr types.Address) (nonce uint64, balance vm.Word, code []byte, exists bool) {
	acct, ok := w.accounts[addr]
	if !ok {
		return 0, vm.ZeroWord(), nil, false
	}
	return acct.nonce, acct.balance, acct.code, true
}

func (w *preStateWorld) Storage(addr types.Address, key vm.Word) vm.Word {
	acct, ok := w.accounts[addr]
	if !ok {
		return vm.ZeroWord()
	}
	if v, ok := acct.storage[key]; ok {
		return v
	}
	return vm.ZeroWord()
}
