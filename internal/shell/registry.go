// Package shell gives client surfaces window roles and drives the requests
// that change them.
//
// Everything in this package runs on the event loop; nothing is locked.
package shell

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/wlshell/internal/grab"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/popup"
	"github.com/1broseidon/wlshell/internal/serial"
)

// DefaultProtocolVersion is the shell protocol version served when none is
// configured.
const DefaultProtocolVersion uint32 = 1

// EventSink delivers events to one client connection.
type EventSink interface {
	Ping(object platform.ObjectID, serial uint32)
	Configure(object platform.ObjectID, edges platform.Edges, width, height int)
	PopupDone(object platform.ObjectID)
	PointerButton(serial, button uint32, pressed bool)
	ProtocolError(object platform.ObjectID, message string)
}

// UnresponsiveAction is what happens to a window whose ping timed out.
type UnresponsiveAction string

const (
	ActionMark   UnresponsiveAction = "mark"
	ActionIgnore UnresponsiveAction = "ignore"
)

// Config configures a Registry.
type Config struct {
	Backend platform.Backend
	// Version is the protocol version clients must bind with.
	Version uint32
	// MinSize is the smallest size an interactive resize produces.
	MinSize platform.Size
	Logger  *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Client is one bound connection.
type Client struct {
	id      platform.ClientID
	version uint32
	sink    EventSink
	roles   map[platform.ObjectID]*Role
}

func (c *Client) ID() platform.ClientID { return c.id }

// Registry binds clients and owns every role object.
type Registry struct {
	backend platform.Backend
	version uint32
	minSize platform.Size
	logger  *slog.Logger
	now     func() time.Time

	serials *serial.Allocator
	arena   *grab.Arena
	popups  *popup.Manager

	clients   map[platform.ClientID]*Client
	bySurface map[platform.Surface]*Role
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Version == 0 {
		cfg.Version = DefaultProtocolVersion
	}
	serials := serial.NewAllocator()
	arena := grab.NewArena(cfg.Logger.With("component", "grab"))
	r := &Registry{
		backend:   cfg.Backend,
		version:   cfg.Version,
		minSize:   cfg.MinSize,
		logger:    cfg.Logger,
		now:       cfg.Now,
		serials:   serials,
		arena:     arena,
		popups:    popup.NewManager(arena, serials, cfg.Logger.With("component", "popup")),
		clients:   make(map[platform.ClientID]*Client),
		bySurface: make(map[platform.Surface]*Role),
	}
	r.popups.OnPressInside = r.pressInsidePopup
	return r
}

// Arena exposes the device grab arena.
func (r *Registry) Arena() *grab.Arena { return r.arena }

// Popups exposes the per-device popup stacks.
func (r *Registry) Popups() *popup.Manager { return r.popups }

// Serials exposes the serial allocator.
func (r *Registry) Serials() *serial.Allocator { return r.serials }

// Version returns the protocol version clients must bind with.
func (r *Registry) Version() uint32 { return r.version }

// MinSize returns the resize floor.
func (r *Registry) MinSize() platform.Size { return r.minSize }

// SetMinSize changes the resize floor for grabs started afterwards.
func (r *Registry) SetMinSize(size platform.Size) { r.minSize = size }

// BindClient creates the shell endpoint of a connection. A client asking for
// another protocol version gets a protocol error and no binding.
func (r *Registry) BindClient(id platform.ClientID, version uint32, sink EventSink) (*Client, error) {
	if version != r.version {
		msg := fmt.Sprintf("incompatible version, server is %d client wants %d", r.version, version)
		sink.ProtocolError(0, msg)
		r.logger.Warn("bind rejected", "client", id, "version", version, "server_version", r.version)
		return nil, fmt.Errorf("%w: %s", ErrProtocolVersionMismatch, msg)
	}
	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	c := &Client{
		id:      id,
		version: version,
		sink:    sink,
		roles:   make(map[platform.ObjectID]*Role),
	}
	r.clients[id] = c
	r.logger.Info("client bound", "client", id, "version", version)
	return c, nil
}

// Bound reports whether id has a binding.
func (r *Registry) Bound(id platform.ClientID) bool {
	_, ok := r.clients[id]
	return ok
}

// CreateRole attaches a new role to surface under (client, object). A surface
// that already has a role is refused without any change.
func (r *Registry) CreateRole(client platform.ClientID, object platform.ObjectID, surface platform.Surface) (*Role, error) {
	c, ok := r.clients[client]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, client)
	}
	if surface == nil {
		return nil, fmt.Errorf("%w: nil surface", ErrUnknownSurface)
	}
	if existing, ok := r.bySurface[surface]; ok {
		return nil, fmt.Errorf("%w: surface %d has role %d", ErrDuplicateRole, surface.ID(), existing.object)
	}
	if _, ok := c.roles[object]; ok {
		return nil, fmt.Errorf("%w: object %d already in use", ErrDuplicateRole, object)
	}

	role := &Role{
		registry:     r,
		client:       c,
		object:       object,
		surface:      surface,
		logger:       r.logger.With("client", client, "object", object, "surface", surface.ID()),
		pendingPings: make(map[uint32]time.Time),
	}
	role.unsubscribe = surface.Subscribe(platform.SurfaceListener{
		Visibility: role.onVisibility,
		Resized:    role.onResized,
	})
	role.rebindView()

	c.roles[object] = role
	r.bySurface[surface] = role
	role.logger.Info("role created")
	return role, nil
}

// Role looks up a role by its protocol object.
func (r *Registry) Role(client platform.ClientID, object platform.ObjectID) (*Role, error) {
	c, ok := r.clients[client]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, client)
	}
	role, ok := c.roles[object]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownObject, object)
	}
	return role, nil
}

// RoleForSurface returns the role attached to surface.
func (r *Registry) RoleForSurface(surface platform.Surface) (*Role, bool) {
	role, ok := r.bySurface[surface]
	return role, ok
}

// DestroyRole tears down a role: its grab is released, its popup chain is
// dismissed from it upward and the entry is removed. Destroying a role that
// is already gone is a no-op returning false.
func (r *Registry) DestroyRole(client platform.ClientID, object platform.ObjectID) bool {
	c, ok := r.clients[client]
	if !ok {
		return false
	}
	role, ok := c.roles[object]
	if !ok {
		return false
	}
	delete(c.roles, object)
	if r.bySurface[role.surface] == role {
		delete(r.bySurface, role.surface)
	}
	role.teardown()
	return true
}

// DisconnectClient destroys every role of client and drops its binding.
// It returns the number of roles destroyed.
func (r *Registry) DisconnectClient(client platform.ClientID) int {
	c, ok := r.clients[client]
	if !ok {
		return 0
	}
	objects := make([]platform.ObjectID, 0, len(c.roles))
	for obj := range c.roles {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i] < objects[j] })

	n := 0
	for _, obj := range objects {
		if r.DestroyRole(client, obj) {
			n++
		}
	}
	delete(r.clients, client)
	r.logger.Info("client disconnected", "client", client, "roles", n)
	return n
}

// NotePointerPress records a button press on seat delivered to client and
// returns its serial. That serial is what set_popup must present.
func (r *Registry) NotePointerPress(seat string, client platform.ClientID) (uint32, error) {
	p, ok := r.backend.Pointer(seat)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSeat, seat)
	}
	return r.popups.NotePress(p, client), nil
}

// PointerPressAt handles a press on seat that no grab consumed, for
// backends that see raw device input. The visible window under pos gets the
// press with a fresh serial. Where windows overlap the last one in Roles
// order wins. It returns false when no window is under pos.
func (r *Registry) PointerPressAt(seat string, button uint32, pos platform.Point) bool {
	roles := r.Roles()
	for i := len(roles) - 1; i >= 0; i-- {
		role := roles[i]
		if role.destroyed || !role.surface.Visible() || !role.Geometry().Contains(pos) {
			continue
		}
		s, err := r.NotePointerPress(seat, role.client.id)
		if err != nil {
			r.logger.Warn("press on unknown seat", "seat", seat, "error", err)
			return false
		}
		role.client.sink.PointerButton(s, button, true)
		return true
	}
	return false
}

func (r *Registry) pressInsidePopup(p popup.Popup, s uint32) {
	role, ok := p.(*Role)
	if !ok || role.destroyed {
		return
	}
	role.client.sink.PointerButton(s, 0, true)
}

// PingAll sends a liveness challenge to every role and returns how many were
// sent.
func (r *Registry) PingAll() int {
	n := 0
	for _, role := range r.Roles() {
		role.Ping()
		n++
	}
	return n
}

// ExpirePings drops challenges older than timeout. With ActionMark the
// owning windows are flagged unresponsive until their next valid pong. It
// returns the windows that had expired pings.
func (r *Registry) ExpirePings(timeout time.Duration, action UnresponsiveAction) []*Role {
	cutoff := r.now().Add(-timeout)
	var hit []*Role
	for _, role := range r.Roles() {
		expired := role.expirePings(cutoff)
		if len(expired) == 0 {
			continue
		}
		hit = append(hit, role)
		if action == ActionMark && !role.unresponsive {
			role.unresponsive = true
			role.logger.Warn("client unresponsive", "expired_pings", len(expired))
		}
	}
	return hit
}

// CancelGrabs force-ends every device grab, popup chains included.
func (r *Registry) CancelGrabs() int {
	return r.arena.CancelAll()
}

// Clients returns the number of bound clients.
func (r *Registry) Clients() int { return len(r.clients) }

// Roles returns every live role ordered by client then object.
func (r *Registry) Roles() []*Role {
	var out []*Role
	for _, c := range r.clients {
		for _, role := range c.roles {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].client.id != out[j].client.id {
			return out[i].client.id < out[j].client.id
		}
		return out[i].object < out[j].object
	})
	return out
}

// outputFor resolves the output a state change targets: out itself, else the
// output under the window's center, else the primary output.
func (r *Registry) outputFor(role *Role, out platform.Output) (platform.Output, error) {
	if out != nil {
		return out, nil
	}
	if r.backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrUnknownOutput)
	}
	g := role.Geometry()
	center := platform.Point{X: g.X + g.Width/2, Y: g.Y + g.Height/2}
	for _, o := range r.backend.Outputs() {
		if o.Geometry().Contains(center) {
			return o, nil
		}
	}
	if p := r.backend.Primary(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: no outputs", ErrUnknownOutput)
}

// bindView keeps one view per role, bound to the output it is shown on.
func (r *Registry) bindView(role *Role, out platform.Output) {
	if r.backend == nil {
		return
	}
	if role.view != nil {
		if role.view.Output() == out {
			return
		}
		role.view.Destroy()
	}
	role.view = r.backend.CreateView(role.surface.ID(), out)
}
