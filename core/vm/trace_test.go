package vm

import "testing"

func TestTracePushAndAt(t *testing.T) {
	tr := NewTrace()
	j := NewJournal(EmptyBaseWorld{})
	s := NewStack()
	s.Push(NewWord(1))
	m := NewMemory()

	tr.Push(addr(1), 0, PUSH1, s, m, j, 3, 1000, 0, ErrNone)
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	e := tr.At(0)
	if e.Op != PUSH1 || e.GasUsed != 3 || e.GasLimit != 1000 {
		t.Fatalf("entry = %+v, unexpected fields", e)
	}
	if len(e.Stack) != 1 || e.Stack[0].Uint64() != 1 {
		t.Fatalf("entry.Stack = %v, want [1]", e.Stack)
	}
}

func TestTraceGrowsPastOnePage(t *testing.T) {
	tr := NewTrace()
	j := NewJournal(EmptyBaseWorld{})
	s := NewStack()
	m := NewMemory()

	for i := 0; i < TracePage+1; i++ {
		tr.Push(addr(1), uint64(i), STOP, s, m, j, 0, 0, 0, ErrNone)
	}
	if tr.Len() != TracePage+1 {
		t.Fatalf("Len() = %d, want %d", tr.Len(), TracePage+1)
	}
	if tr.Cap() < tr.Len() {
		t.Fatalf("Cap() = %d < Len() = %d", tr.Cap(), tr.Len())
	}
	// Entries before the grow must survive the underlying reallocation.
	if tr.At(0).Pc != 0 {
		t.Fatalf("At(0).Pc = %d, want 0", tr.At(0).Pc)
	}
	if tr.At(TracePage).Pc != uint64(TracePage) {
		t.Fatalf("At(TracePage).Pc = %d, want %d", tr.At(TracePage).Pc, TracePage)
	}
}

func TestTraceModifyLastStack(t *testing.T) {
	tr := NewTrace()
	j := NewJournal(EmptyBaseWorld{})
	s := NewStack()
	m := NewMemory()
	tr.Push(addr(1), 0, ADD, s, m, j, 0, 0, 0, ErrNone)

	s.Push(NewWord(7))
	tr.ModifyLastStack(s)

	e := tr.At(0)
	if len(e.Stack) != 1 || e.Stack[0].Uint64() != 7 {
		t.Fatalf("entry.Stack after ModifyLastStack = %v, want [7]", e.Stack)
	}
}

func TestTraceModifyLastStackPanicsOnDoublePatch(t *testing.T) {
	tr := NewTrace()
	j := NewJournal(EmptyBaseWorld{})
	s := NewStack()
	m := NewMemory()
	tr.Push(addr(1), 0, ADD, s, m, j, 0, 0, 0, ErrNone)

	tr.ModifyLastStack(s)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("second ModifyLastStack on the same entry should panic")
		}
	}()
	tr.ModifyLastStack(s)
}

func TestTraceModifyLastStackPanicsOnEmptyTrace(t *testing.T) {
	tr := NewTrace()
	s := NewStack()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("ModifyLastStack on an empty trace should panic")
		}
	}()
	tr.ModifyLastStack(s)
}

func TestTraceAtOutOfRangePanics(t *testing.T) {
	tr := NewTrace()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("At() out of range should panic")
		}
	}()
	tr.At(0)
}

func TestTraceRenderProducesHexDocuments(t *testing.T) {
	tr := NewTrace()
	j := NewJournal(EmptyBaseWorld{})
	s := NewStack()
	s.Push(NewWord(5))
	m := NewMemory()
	m.Write(0, []byte{0xab})

	tr.Push(addr(3), 1, MSTORE, s, m, j, 10, 100, 0, ErrNone)
	docs := tr.Render()
	if len(docs) != 1 {
		t.Fatalf("Render() len = %d, want 1", len(docs))
	}
	doc := docs[0]
	if doc.Opcode != "MSTORE" {
		t.Fatalf("doc.Opcode = %q, want MSTORE", doc.Opcode)
	}
	if doc.GasUsed != "0xa" {
		t.Fatalf("doc.GasUsed = %q, want 0xa", doc.GasUsed)
	}
	if len(doc.Stack) != 1 || doc.Stack[0] == "" {
		t.Fatalf("doc.Stack = %v, want one nonempty hex word", doc.Stack)
	}
}
