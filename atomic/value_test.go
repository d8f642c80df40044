package atomic_test

import (
	"testing"

	libatm "github.com/sabouaram/peerlink/atomic"
)

func TestValueLoadStore(t *testing.T) {
	v := libatm.NewValue(42)
	if v.Load() != 42 {
		t.Fatalf("expected 42")
	}
	old := v.Swap(7)
	if old != 42 || v.Load() != 7 {
		t.Fatalf("swap did not behave as expected")
	}
	v.Update(func(i int) int { return i + 1 })
	if v.Load() != 8 {
		t.Fatalf("expected 8 after update")
	}
}

func TestMapBasics(t *testing.T) {
	m := libatm.NewMap[uint16, string]()
	m.Set(1, "a")
	if v, ok := m.Get(1); !ok || v != "a" {
		t.Fatalf("expected to find key 1")
	}
	if m.Len() != 1 {
		t.Fatalf("expected length 1")
	}
	m.Delete(1)
	if _, ok := m.Get(1); ok {
		t.Fatalf("expected key 1 to be gone")
	}
}
