package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/batchvm/batchvm/core/vm"
)

const sampleFixture = `{
  "add": {
    "env": {
      "currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
      "currentGasLimit": "0x5f5e100",
      "currentNumber": "0x1",
      "currentTimestamp": "0x3e8",
      "currentBaseFee": "0x1",
      "currentRandom": "0x00"
    },
    "pre": {
      "0x1000000000000000000000000000000000000001": {
        "balance": "0x0",
        "code": "0x6001600201600052602060006000f3",
        "nonce": "0x0",
        "storage": {}
      },
      "0x2000000000000000000000000000000000000002": {
        "balance": "0x3b9aca00",
        "code": "0x",
        "nonce": "0x0",
        "storage": {}
      }
    },
    "transaction": {
      "sender": "0x2000000000000000000000000000000000000002",
      "to": "0x1000000000000000000000000000000000000001",
      "nonce": "0x0",
      "gasPrice": "0x1",
      "data": ["0x", "0x01"],
      "gasLimit": ["0x186a0", "0x2dc6c0"],
      "value": ["0x0", "0x1"]
    },
    "post": {}
  }
}`

func writeSampleFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "add.json")
	if err := os.WriteFile(path, []byte(sampleFixture), 0o644); err != nil {
		t.Fatalf("write sample fixture: %v", err)
	}
	return path
}

func TestLoadParsesFixtureNames(t *testing.T) {
	path := writeSampleFixture(t)
	fixtures, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fixtures) != 1 {
		t.Fatalf("Load() returned %d fixtures, want 1", len(fixtures))
	}
	if _, ok := fixtures["add"]; !ok {
		t.Fatal(`Load() missing fixture named "add"`)
	}
}

func TestInstancesCartesianExpansionOrder(t *testing.T) {
	path := writeSampleFixture(t)
	fixtures, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	instances := fixtures["add"].Instances()
	// |data|=2, |gasLimit|=2, |value|=2 -> 8 instances, outer loop order
	// data, then gasLimit, then value per spec.md's cartesian contract.
	if len(instances) != 8 {
		t.Fatalf("Instances() len = %d, want 8", len(instances))
	}
	want := []Index{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
	}
	for i, inst := range instances {
		if inst.Index != want[i] {
			t.Fatalf("instance %d Index = %+v, want %+v", i, inst.Index, want[i])
		}
	}
}

func TestInstanceFieldsResolvedFromHex(t *testing.T) {
	path := writeSampleFixture(t)
	fixtures, _ := Load(path)
	instances := fixtures["add"].Instances()
	first := instances[0]

	if first.Name != "add" {
		t.Fatalf("Name = %q, want add", first.Name)
	}
	if first.Msg.Type != vm.CallTypeCall {
		t.Fatalf("Type = %v, want CallTypeCall (transaction.to is set)", first.Msg.Type)
	}
	if first.Msg.Gas != 0x186a0 {
		t.Fatalf("Gas = %d, want 0x186a0", first.Msg.Gas)
	}
	if !first.Msg.Value.IsZero() {
		t.Fatalf("Value = %v, want 0 for index.value=0", first.Msg.Value)
	}
	last := instances[len(instances)-1]
	if last.Msg.Value.Uint64() != 1 {
		t.Fatalf("last instance Value = %v, want 1", last.Msg.Value)
	}
	if len(last.Msg.Data) != 1 || last.Msg.Data[0] != 0x01 {
		t.Fatalf("last instance Data = %x, want [0x01]", last.Msg.Data)
	}
}

func TestInstancesCreateTypeWhenToEmpty(t *testing.T) {
	f := &Fixture{Name: "deploy", raw: rawFixture{
		Pre: map[string]rawAccount{},
		Tx: rawTransaction{
			Sender:   "0x2000000000000000000000000000000000000002",
			To:       "",
			GasPrice: "0x1",
			Data:     []string{"0x00"},
			GasLimit: []string{"0x5208"},
			Value:    []string{"0x0"},
		},
	}}
	instances := f.Instances()
	if len(instances) != 1 {
		t.Fatalf("Instances() len = %d, want 1", len(instances))
	}
	if instances[0].Msg.Type != vm.CallTypeCreate {
		t.Fatalf("Type = %v, want CallTypeCreate", instances[0].Msg.Type)
	}
}

func TestInstancesEmptyArrayYieldsNoInstances(t *testing.T) {
	f := &Fixture{Name: "empty", raw: rawFixture{
		Tx: rawTransaction{Data: nil, GasLimit: []string{"0x1"}, Value: []string{"0x0"}},
	}}
	if instances := f.Instances(); instances != nil {
		t.Fatalf("Instances() with an empty data array = %v, want nil", instances)
	}
}

func TestLoadInstancesSortsFixturesByName(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"zzz": {"pre": {}, "transaction": {"sender":"0x01","to":"0x02","gasPrice":"0x1","data":["0x"],"gasLimit":["0x5208"],"value":["0x0"]}},
		"aaa": {"pre": {}, "transaction": {"sender":"0x01","to":"0x02","gasPrice":"0x1","data":["0x"],"gasLimit":["0x5208"],"value":["0x0"]}}
	}`
	path := filepath.Join(dir, "multi.json")
	os.WriteFile(path, []byte(doc), 0o644)

	instances, err := LoadInstances(path)
	if err != nil {
		t.Fatalf("LoadInstances: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("LoadInstances() len = %d, want 2", len(instances))
	}
	if instances[0].Name != "aaa" || instances[1].Name != "zzz" {
		t.Fatalf("LoadInstances() order = [%s, %s], want [aaa, zzz]", instances[0].Name, instances[1].Name)
	}
}

func TestDiscoverFixturesSortedByPath(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{}`), 0o644)
	os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o644)
	os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte(`not json`), 0o644)

	paths, err := DiscoverFixtures(dir)
	if err != nil {
		t.Fatalf("DiscoverFixtures: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("DiscoverFixtures() len = %d, want 2", len(paths))
	}
	if filepath.Base(paths[0]) != "a.json" || filepath.Base(paths[1]) != "b.json" {
		t.Fatalf("DiscoverFixtures() order = %v, want [a.json b.json]", paths)
	}
}
