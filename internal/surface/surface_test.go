package surface

import (
	"errors"
	"testing"

	"github.com/1broseidon/wlshell/internal/platform"
)

func TestAttachNotifiesOnChange(t *testing.T) {
	s := New("c", 1, platform.Size{Width: 10, Height: 10})
	var got []bool
	s.Subscribe(platform.SurfaceListener{Visibility: func(v bool) { got = append(got, v) }})

	s.Attach(true)
	s.Attach(true)
	s.Attach(false)

	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("visibility events = %v, want [true false]", got)
	}
}

func TestCommitAndResizeNotify(t *testing.T) {
	s := New("c", 1, platform.Size{Width: 10, Height: 10})
	var sizes []platform.Size
	cancel := s.Subscribe(platform.SurfaceListener{Resized: func(sz platform.Size) { sizes = append(sizes, sz) }})

	s.Commit(platform.Size{Width: 20, Height: 10})
	s.Resize(platform.Size{Width: 20, Height: 10})
	s.Resize(platform.Size{Width: 30, Height: 40})
	cancel()
	s.Commit(platform.Size{Width: 1, Height: 1})

	if len(sizes) != 2 {
		t.Fatalf("resize events = %v, want 2", sizes)
	}
	if s.Listeners() != 0 {
		t.Fatalf("Listeners() = %d, want 0", s.Listeners())
	}
}

func TestUnsubscribeDuringNotify(t *testing.T) {
	s := New("c", 1, platform.Size{Width: 10, Height: 10})
	calls := 0
	var cancel func()
	cancel = s.Subscribe(platform.SurfaceListener{Visibility: func(bool) {
		calls++
		cancel()
	}})
	s.Subscribe(platform.SurfaceListener{Visibility: func(bool) { calls++ }})

	s.Attach(true)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestGlobalGeometry(t *testing.T) {
	s := New("c", 1, platform.Size{Width: 400, Height: 300})
	s.SetGlobalPosition(platform.Point{X: 100, Y: 100})
	want := platform.Rect{X: 100, Y: 100, Width: 400, Height: 300}
	if got := s.GlobalGeometry(); got != want {
		t.Fatalf("GlobalGeometry() = %+v, want %+v", got, want)
	}
}

func TestStore(t *testing.T) {
	st := NewStore("c")
	if _, err := st.Create(2, platform.Size{}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := st.Create(1, platform.Size{}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := st.Create(1, platform.Size{}); !errors.Is(err, ErrExists) {
		t.Fatalf("Create() dup error = %v, want ErrExists", err)
	}

	all := st.All()
	if len(all) != 2 || all[0].ID() != 1 || all[1].ID() != 2 {
		t.Fatalf("All() order wrong: %v", all)
	}

	s, _ := st.Get(1)
	s.Attach(true)
	hidden := false
	s.Subscribe(platform.SurfaceListener{Visibility: func(v bool) { hidden = !v }})
	if !st.Remove(1) || !hidden {
		t.Fatal("Remove() should hide the surface")
	}
	if st.Remove(1) {
		t.Fatal("second Remove() = true")
	}
	if _, err := st.Get(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
