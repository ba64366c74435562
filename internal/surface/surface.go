// Package surface holds the client surfaces the shell gives roles to. It is
// the observable end of the buffer pipeline: attaching toggles visibility,
// committing changes the size.
package surface

import (
	"errors"
	"fmt"
	"sort"

	"github.com/1broseidon/wlshell/internal/platform"
)

var (
	// ErrExists is returned when a surface id is reused within one client.
	ErrExists = errors.New("surface already exists")
	// ErrNotFound is returned for an unknown surface id.
	ErrNotFound = errors.New("surface not found")
)

// Surface is an in-memory platform.Surface.
type Surface struct {
	id       platform.SurfaceID
	client   platform.ClientID
	pos      platform.Point
	size     platform.Size
	visible  bool
	state    platform.WindowState
	parent   platform.Surface
	offset   platform.Point
	inactive bool

	listeners map[int]platform.SurfaceListener
	nextID    int
}

var _ platform.Surface = (*Surface)(nil)

// New creates an invisible surface of the given size at the origin.
func New(client platform.ClientID, id platform.SurfaceID, size platform.Size) *Surface {
	return &Surface{
		id:        id,
		client:    client,
		size:      size,
		listeners: make(map[int]platform.SurfaceListener),
	}
}

func (s *Surface) ID() platform.SurfaceID         { return s.id }
func (s *Surface) Client() platform.ClientID      { return s.client }
func (s *Surface) Size() platform.Size            { return s.size }
func (s *Surface) Visible() bool                  { return s.visible }
func (s *Surface) GlobalPosition() platform.Point { return s.pos }
func (s *Surface) State() platform.WindowState    { return s.state }

func (s *Surface) TransientParent() platform.Surface { return s.parent }
func (s *Surface) TransientOffset() platform.Point   { return s.offset }

// Inactive reports whether the transient relation asked not to take focus.
func (s *Surface) Inactive() bool { return s.inactive }

func (s *Surface) SetGlobalPosition(pos platform.Point) {
	s.pos = pos
}

func (s *Surface) GlobalGeometry() platform.Rect {
	return platform.RectFrom(s.pos, s.size)
}

// Resize applies a size command from the shell.
func (s *Surface) Resize(size platform.Size) {
	s.setSize(size)
}

func (s *Surface) SetState(state platform.WindowState) {
	s.state = state
}

func (s *Surface) SetTransientParent(parent platform.Surface, offset platform.Point, inactive bool) {
	s.parent = parent
	s.offset = offset
	s.inactive = inactive
}

func (s *Surface) Subscribe(l platform.SurfaceListener) func() {
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() { delete(s.listeners, id) }
}

// Attach marks the surface as having (or no longer having) content.
func (s *Surface) Attach(visible bool) {
	if s.visible == visible {
		return
	}
	s.visible = visible
	for _, id := range s.listenerIDs() {
		if l, ok := s.listeners[id]; ok && l.Visibility != nil {
			l.Visibility(visible)
		}
	}
}

// Commit applies a client-side size change.
func (s *Surface) Commit(size platform.Size) {
	s.setSize(size)
}

// Listeners returns the number of active subscriptions.
func (s *Surface) Listeners() int {
	return len(s.listeners)
}

func (s *Surface) setSize(size platform.Size) {
	if s.size == size {
		return
	}
	s.size = size
	for _, id := range s.listenerIDs() {
		if l, ok := s.listeners[id]; ok && l.Resized != nil {
			l.Resized(size)
		}
	}
}

// listenerIDs snapshots subscription order so listeners may unsubscribe
// while being notified.
func (s *Surface) listenerIDs() []int {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Store holds the surfaces of one client.
type Store struct {
	client   platform.ClientID
	surfaces map[platform.SurfaceID]*Surface
}

// NewStore creates an empty store for client.
func NewStore(client platform.ClientID) *Store {
	return &Store{client: client, surfaces: make(map[platform.SurfaceID]*Surface)}
}

// Create adds a new surface.
func (st *Store) Create(id platform.SurfaceID, size platform.Size) (*Surface, error) {
	if _, ok := st.surfaces[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrExists, id)
	}
	s := New(st.client, id, size)
	st.surfaces[id] = s
	return s, nil
}

// Get looks up a surface by id.
func (st *Store) Get(id platform.SurfaceID) (*Surface, error) {
	s, ok := st.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s, nil
}

// Remove drops a surface, hiding it first so observers see it go away.
func (st *Store) Remove(id platform.SurfaceID) bool {
	s, ok := st.surfaces[id]
	if !ok {
		return false
	}
	s.Attach(false)
	delete(st.surfaces, id)
	return true
}

// All returns the surfaces ordered by id.
func (st *Store) All() []*Surface {
	out := make([]*Surface, 0, len(st.surfaces))
	for _, s := range st.surfaces {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
