// Package serial allocates protocol serials and correlates them with the
// request that produced them.
package serial

// Kind is the purpose a tracked serial was allocated for.
type Kind int

const (
	KindPing Kind = iota
	KindPopupGrab
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPopupGrab:
		return "popup-grab"
	default:
		return "unknown"
	}
}

// Record describes an outstanding serial.
type Record struct {
	Kind  Kind
	Owner any
}

// Allocator hands out monotonically increasing serials. It is not safe for
// concurrent use; callers run on the event loop.
type Allocator struct {
	last    uint32
	pending map[uint32]Record
}

// NewAllocator creates an allocator whose first serial is 1.
func NewAllocator() *Allocator {
	return &Allocator{pending: make(map[uint32]Record)}
}

// Next returns a fresh serial without tracking it. Zero is skipped on wrap.
func (a *Allocator) Next() uint32 {
	a.last++
	if a.last == 0 {
		a.last = 1
	}
	return a.last
}

// Track allocates a serial and remembers who is waiting on it.
func (a *Allocator) Track(kind Kind, owner any) uint32 {
	s := a.Next()
	a.pending[s] = Record{Kind: kind, Owner: owner}
	return s
}

// Replace is Track, but first drops every outstanding serial of the same kind
// and owner. The newer serial supersedes them.
func (a *Allocator) Replace(kind Kind, owner any) uint32 {
	for s, rec := range a.pending {
		if rec.Kind == kind && rec.Owner == owner {
			delete(a.pending, s)
		}
	}
	return a.Track(kind, owner)
}

// Lookup returns the record for s without consuming it.
func (a *Allocator) Lookup(s uint32) (Record, bool) {
	rec, ok := a.pending[s]
	return rec, ok
}

// Resolve consumes s if it is outstanding for kind and owner.
func (a *Allocator) Resolve(s uint32, kind Kind, owner any) bool {
	rec, ok := a.pending[s]
	if !ok || rec.Kind != kind || rec.Owner != owner {
		return false
	}
	delete(a.pending, s)
	return true
}

// Forget drops every serial owned by owner.
func (a *Allocator) Forget(owner any) int {
	n := 0
	for s, rec := range a.pending {
		if rec.Owner == owner {
			delete(a.pending, s)
			n++
		}
	}
	return n
}

// Pending returns the number of outstanding serials.
func (a *Allocator) Pending() int {
	return len(a.pending)
}

// Last returns the most recently allocated serial.
func (a *Allocator) Last() uint32 {
	return a.last
}
