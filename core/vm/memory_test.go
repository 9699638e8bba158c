package vm

import (
	"bytes"
	"testing"
)

func TestMemoryWriteRead(t *testing.T) {
	m := NewMemory()
	data := []byte{1, 2, 3, 4}
	if _, err := m.ExpansionCost(uint64(len(data))); err != nil {
		t.Fatalf("ExpansionCost: %v", err)
	}
	if err := m.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := m.Read(0, 4)
	if !bytes.Equal(got, data) {
		t.Fatalf("Read(0,4) = %x, want %x", got, data)
	}
}

func TestMemoryReadPastEndZeroPads(t *testing.T) {
	m := NewMemory()
	m.Write(0, []byte{0xaa})
	got := m.Read(0, 4)
	want := []byte{0xaa, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("Read(0,4) = %x, want %x", got, want)
	}
}

func TestMemoryLenRoundsToWords(t *testing.T) {
	m := NewMemory()
	m.Write(0, []byte{1})
	if m.Len() != 32 {
		t.Fatalf("Len() after writing 1 byte = %d, want 32 (rounded up to one word)", m.Len())
	}
	if m.LenWords() != 1 {
		t.Fatalf("LenWords() = %d, want 1", m.LenWords())
	}
}

func TestMemoryExpansionCostIsIncremental(t *testing.T) {
	m := NewMemory()
	first, err := m.ExpansionCost(32)
	if err != nil {
		t.Fatalf("ExpansionCost(32): %v", err)
	}
	m.Write(0, make([]byte, 32))

	second, err := m.ExpansionCost(32)
	if err != nil {
		t.Fatalf("ExpansionCost(32) again: %v", err)
	}
	if second != 0 {
		t.Fatalf("ExpansionCost for already-covered range = %d, want 0", second)
	}
	if first == 0 {
		t.Fatalf("ExpansionCost(32) from empty = 0, want nonzero")
	}

	grow, err := m.ExpansionCost(64)
	if err != nil {
		t.Fatalf("ExpansionCost(64): %v", err)
	}
	if grow == 0 {
		t.Fatalf("ExpansionCost(64) after 32 already paid = 0, want nonzero")
	}
}

func TestMemoryWriteByte(t *testing.T) {
	m := NewMemory()
	if err := m.WriteByte(5, 0x42); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	got := m.Read(5, 1)
	if got[0] != 0x42 {
		t.Fatalf("Read after WriteByte = %x, want 0x42", got)
	}
}

func TestMemoryCopyOverlapping(t *testing.T) {
	m := NewMemory()
	m.Write(0, []byte{1, 2, 3, 4, 5})
	// Shift right by one: dst overlaps src.
	if err := m.Copy(1, 0, 4); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got := m.Read(0, 5)
	want := []byte{1, 1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Fatalf("overlapping Copy result = %x, want %x", got, want)
	}
}

func TestMemorySnapshotIsIndependentCopy(t *testing.T) {
	m := NewMemory()
	m.Write(0, []byte{1, 2, 3})
	snap := m.Snapshot()
	m.Write(0, []byte{9, 9, 9})
	if bytes.Equal(snap, m.Data()) {
		t.Fatalf("Snapshot aliased live memory: snap=%x data=%x", snap, m.Data())
	}
	if !bytes.Equal(snap[:3], []byte{1, 2, 3}) {
		t.Fatalf("Snapshot = %x, want first three bytes 1,2,3", snap)
	}
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory()
	m.Write(0, []byte{1, 2, 3})
	m.Reset()
	if m.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", m.Len())
	}
}
