package vm

import "testing"

func TestMessageInputSliceWithinBounds(t *testing.T) {
	m := &Message{Data: []byte{1, 2, 3, 4, 5}}
	data, avail := m.InputSlice(1, 3)
	if avail != 3 {
		t.Fatalf("available = %d, want 3", avail)
	}
	if string(data) != string([]byte{2, 3, 4}) {
		t.Fatalf("data = %v, want [2 3 4]", data)
	}
}

func TestMessageInputSlicePastEnd(t *testing.T) {
	m := &Message{Data: []byte{1, 2, 3}}
	data, avail := m.InputSlice(2, 5)
	if avail != 1 {
		t.Fatalf("available = %d, want 1", avail)
	}
	if len(data) != 1 || data[0] != 3 {
		t.Fatalf("data = %v, want [3]", data)
	}
}

func TestMessageInputSliceOffsetBeyondData(t *testing.T) {
	m := &Message{Data: []byte{1, 2, 3}}
	data, avail := m.InputSlice(10, 5)
	if avail != 0 || data != nil {
		t.Fatalf("InputSlice(10, 5) = %v, %d, want nil, 0", data, avail)
	}
}

func TestMessageInputSliceOverflow(t *testing.T) {
	m := &Message{Data: []byte{1, 2, 3}}
	data, avail := m.InputSlice(1, ^uint64(0))
	if avail != 2 {
		t.Fatalf("available = %d, want 2 (clamped to data length)", avail)
	}
	if len(data) != 2 {
		t.Fatalf("data len = %d, want 2", len(data))
	}
}

func TestCallTypeString(t *testing.T) {
	cases := map[CallType]string{
		CallTypeCall:         "CALL",
		CallTypeCallCode:     "CALLCODE",
		CallTypeDelegateCall: "DELEGATECALL",
		CallTypeStaticCall:   "STATICCALL",
		CallTypeCreate:       "CREATE",
		CallTypeCreate2:      "CREATE2",
	}
	for ct, want := range cases {
		if got := ct.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", ct, got, want)
		}
	}
}

func TestCallTypeIsCreate(t *testing.T) {
	if !CallTypeCreate.IsCreate() || !CallTypeCreate2.IsCreate() {
		t.Fatal("CREATE/CREATE2 should report IsCreate() true")
	}
	if CallTypeCall.IsCreate() || CallTypeStaticCall.IsCreate() {
		t.Fatal("CALL/STATICCALL should report IsCreate() false")
	}
}

func TestMessageStaticContext(t *testing.T) {
	m := &Message{Type: CallTypeStaticCall}
	if !m.StaticContext() {
		t.Fatal("StaticContext() false for a STATICCALL message")
	}
	m2 := &Message{Type: CallTypeCall}
	if m2.StaticContext() {
		t.Fatal("StaticContext() true for a plain CALL message")
	}
}
