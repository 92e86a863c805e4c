package buffers

import "testing"

func TestRingPushAndSnapshotOrder(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	got := r.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("snapshot len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("snapshot[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingLenCapAndTotal(t *testing.T) {
	r := NewRing[string](2)
	if r.Cap() != 2 {
		t.Fatalf("Cap() = %d, want 2", r.Cap())
	}
	r.Push("a")
	r.Push("b")
	r.Push("c")
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.TotalPushed() != 3 {
		t.Errorf("TotalPushed() = %d, want 3", r.TotalPushed())
	}
}

func TestRingClearKeepsTotal(t *testing.T) {
	r := NewRing[int](4)
	r.Push(1)
	r.Push(2)
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	if r.TotalPushed() != 2 {
		t.Errorf("TotalPushed() after Clear = %d, want 2", r.TotalPushed())
	}
}

func TestRingZeroCapacityTreatedAsOne(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	if r.Cap() != 1 {
		t.Fatalf("Cap() = %d, want 1", r.Cap())
	}
	if got := r.Snapshot(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Snapshot() = %v, want [2]", got)
	}
}
