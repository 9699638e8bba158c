// Package fixture loads Ethereum state-test JSON documents and expands
// each one into the independent instances a batch driver runs. Directory
// discovery and the stJSON/stTransaction shape follow the conventions of
// go-ethereum-style state-test loaders, rewritten against this module's
// trimmed core/types and core/vm rather than full go-ethereum transaction
// machinery: there is no chain config, no per-fork post-state comparison,
// and no transaction signing. A fixture's "post" block, when present, is
// parsed but not used: it is not carried into an Instance, and no
// expected-exception or state-root comparison is made.
package fixture

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/batchvm/batchvm/core/types"
	"github.com/batchvm/batchvm/core/vm"
)

// rawDocument is the top-level shape of a state-test file: one or more
// named fixtures, go-ethereum's long-standing convention.
type rawDocument map[string]rawFixture

type rawFixture struct {
	Env  rawEnv                   `json:"env"`
	Pre  map[string]rawAccount    `json:"pre"`
	Tx   rawTransaction           `json:"transaction"`
	Post map[string][]rawIndexSet `json:"post"`
}

type rawEnv struct {
	CurrentCoinbase  string `json:"currentCoinbase"`
	CurrentGasLimit  string `json:"currentGasLimit"`
	CurrentNumber    string `json:"currentNumber"`
	CurrentTimestamp string `json:"currentTimestamp"`
	CurrentBaseFee   string `json:"currentBaseFee"`
	CurrentRandom    string `json:"currentRandom"`
}

type rawAccount struct {
	Balance string            `json:"balance"`
	Code    string            `json:"code"`
	Nonce   string            `json:"nonce"`
	Storage map[string]string `json:"storage"`
}

// rawTransaction mirrors spec.md's fixture table exactly: sender/to/nonce/
// gasPrice are scalars, data/gasLimit/value are cartesian-expanded arrays.
type rawTransaction struct {
	Sender   string   `json:"sender"`
	To       string   `json:"to"`
	Nonce    string   `json:"nonce"`
	GasPrice string   `json:"gasPrice"`
	Data     []string `json:"data"`
	GasLimit []string `json:"gasLimit"`
	Value    []string `json:"value"`
}

type rawIndexSet struct {
	Indexes         Index  `json:"indexes"`
	ExpectException string `json:"expectException"`
}

// Index selects one data/gasLimit/value combination out of a
// transaction's cartesian-expanded arrays.
type Index struct {
	Data  int `json:"data"`
	Gas   int `json:"gas"`
	Value int `json:"value"`
}

// Instance is one fully-resolved, independent transaction: a ready-to-run
// Message plus the base world its journal reads through. Instances share
// nothing; the batch driver owns a slice of these.
type Instance struct {
	Name  string
	Index Index
	Block vm.BlockContext
	World vm.BaseWorld
	Msg   *vm.Message
}

// Fixture holds one parsed state test, still addressable by name, ahead
// of cartesian expansion into Instances.
type Fixture struct {
	Name string
	raw  rawFixture
}

// Load reads path and returns every fixture it contains, keyed by name.
func Load(path string) (map[string]*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture JSON: %w", err)
	}
	out := make(map[string]*Fixture, len(doc))
	for name, raw := range doc {
		out[name] = &Fixture{Name: name, raw: raw}
	}
	return out, nil
}

// LoadInstances reads path and expands every fixture it contains directly
// into instances, in name order then cartesian (data, gasLimit, value)
// order, matching spec.md §6's outer-loop-data convention.
func LoadInstances(path string) ([]*Instance, error) {
	fixtures, err := Load(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		names = append(names, name)
	}
	sort.Strings(names)

	var instances []*Instance
	for _, name := range names {
		instances = append(instances, fixtures[name].Instances()...)
	}
	return instances, nil
}

// Instances expands this fixture's transaction into
// |data| x |gasLimit| x |value| instances, outer-loop order data, then
// gasLimit, then value, per spec.md §6.
func (f *Fixture) Instances() []*Instance {
	tx := f.raw.Tx
	dataLen, gasLen, valLen := len(tx.Data), len(tx.GasLimit), len(tx.Value)
	if dataLen == 0 || gasLen == 0 || valLen == 0 {
		return nil
	}

	world := newPreStateWorld(f.raw.Pre)
	block := f.raw.Env.toBlockContext()
	sender := hexToAddress(tx.Sender)
	gasPrice := wordFromHex(tx.GasPrice)

	var instances []*Instance
	for d := 0; d < dataLen; d++ {
		for g := 0; g < gasLen; g++ {
			for v := 0; v < valLen; v++ {
				idx := Index{Data: d, Gas: g, Value: v}
				msg := &vm.Message{
					Origin:   sender,
					GasPrice: gasPrice,
					Caller:   sender,
					Value:    wordFromHex(tx.Value[v]),
					Data:     hexToBytes(tx.Data[d]),
					Gas:      hexToUint64(tx.GasLimit[g]),
					Depth:    0,
				}
				if tx.To == "" {
					msg.Type = vm.CallTypeCreate
				} else {
					msg.To = hexToAddress(tx.To)
					msg.Type = vm.CallTypeCall
				}
				instances = append(instances, &Instance{
					Name:  f.Name,
					Index: idx,
					Block: block,
					World: world,
					Msg:   msg,
				})
			}
		}
	}
	return instances
}

// DiscoverFixtures walks dir for .json fixture files, sorted by path.
func DiscoverFixtures(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk fixture dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (e rawEnv) toBlockContext() vm.BlockContext {
	return vm.BlockContext{
		Coinbase:    hexToAddress(e.CurrentCoinbase),
		Timestamp:   hexToUint64(e.CurrentTimestamp),
		Number:      hexToUint64(e.CurrentNumber),
		PrevRandao:  hexToHash(e.CurrentRandom),
		GasLimit:    hexToUint64(e.CurrentGasLimit),
		BaseFee:     wordFromHex(e.CurrentBaseFee),
		BlobBaseFee: vm.ZeroWord(),
	}
}

func hexToBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) == 0 {
		return nil
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func hexToUint64(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) == 0 {
		return 0
	}
	val := new(big.Int)
	val.SetString(s, 16)
	return val.Uint64()
}

func hexToAddress(s string) types.Address {
	return types.HexToAddress(s)
}

func hexToHash(s string) types.Hash {
	return types.HexToHash(s)
}

func wordFromHex(s string) vm.Word {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) == 0 {
		return vm.ZeroWord()
	}
	b := new(big.Int)
	b.SetString(s, 16)
	var w vm.Word
	vm.SetFromBig(&w, b)
	return w
}
