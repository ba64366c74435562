package serial

import "testing"

func TestNext_Monotonic(t *testing.T) {
	a := NewAllocator()
	prev := a.Next()
	if prev != 1 {
		t.Fatalf("first Next() = %d, want 1", prev)
	}
	for i := 0; i < 100; i++ {
		s := a.Next()
		if s <= prev {
			t.Fatalf("Next() = %d after %d, want increasing", s, prev)
		}
		prev = s
	}
}

func TestNext_SkipsZeroOnWrap(t *testing.T) {
	a := NewAllocator()
	a.last = ^uint32(0)
	if got := a.Next(); got != 1 {
		t.Fatalf("Next() after wrap = %d, want 1", got)
	}
}

func TestTrackResolve(t *testing.T) {
	a := NewAllocator()
	owner := &struct{ name string }{"role"}

	s := a.Track(KindPing, owner)
	if rec, ok := a.Lookup(s); !ok || rec.Kind != KindPing || rec.Owner != owner {
		t.Fatalf("Lookup(%d) = %+v, %v", s, rec, ok)
	}

	if a.Resolve(s, KindPopupGrab, owner) {
		t.Fatal("Resolve with wrong kind should fail")
	}
	if a.Resolve(s, KindPing, &struct{ name string }{"other"}) {
		t.Fatal("Resolve with wrong owner should fail")
	}
	if !a.Resolve(s, KindPing, owner) {
		t.Fatal("Resolve should consume the serial")
	}
	if a.Resolve(s, KindPing, owner) {
		t.Fatal("second Resolve should fail")
	}
	if a.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", a.Pending())
	}
}

func TestReplace_SupersedesSamePurpose(t *testing.T) {
	a := NewAllocator()
	dev := "pointer-1"
	other := "pointer-2"

	first := a.Replace(KindPopupGrab, dev)
	keep := a.Replace(KindPopupGrab, other)
	second := a.Replace(KindPopupGrab, dev)

	if _, ok := a.Lookup(first); ok {
		t.Fatalf("serial %d should have been superseded", first)
	}
	if _, ok := a.Lookup(second); !ok {
		t.Fatalf("serial %d should be pending", second)
	}
	if _, ok := a.Lookup(keep); !ok {
		t.Fatalf("serial %d of another owner should survive", keep)
	}
}

func TestForget(t *testing.T) {
	a := NewAllocator()
	owner := "role-a"
	a.Track(KindPing, owner)
	a.Track(KindPing, owner)
	a.Track(KindPing, "role-b")

	if n := a.Forget(owner); n != 2 {
		t.Fatalf("Forget() = %d, want 2", n)
	}
	if a.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", a.Pending())
	}
}
