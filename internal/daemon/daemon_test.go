package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/headless"
	"github.com/1broseidon/wlshell/internal/ipc"
	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/shell"
	"github.com/1broseidon/wlshell/internal/surface"
)

type pingSink struct {
	pings []uint32
}

func (s *pingSink) Ping(_ platform.ObjectID, serial uint32) { s.pings = append(s.pings, serial) }
func (s *pingSink) Configure(platform.ObjectID, platform.Edges, int, int) {}
func (s *pingSink) PopupDone(platform.ObjectID) {}
func (s *pingSink) PointerButton(uint32, uint32, bool) {}
func (s *pingSink) ProtocolError(platform.ObjectID, string) {}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	t        *testing.T
	ctx      context.Context
	loop     *loop.Loop
	registry *shell.Registry
	clock    *fakeClock
	sink     *pingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(0, nil)
	go l.Run(ctx)

	backend := headless.New([]headless.OutputSpec{
		{Name: "out0", Geometry: platform.Rect{Width: 1920, Height: 1080}},
	}, []string{"seat0"})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	f := &fixture{
		t:        t,
		ctx:      ctx,
		loop:     l,
		registry: shell.NewRegistry(shell.Config{Backend: backend, Now: clock.Now}),
		clock:    clock,
		sink:     &pingSink{},
	}
	f.call(func() {
		if _, err := f.registry.BindClient("c1", shell.DefaultProtocolVersion, f.sink); err != nil {
			t.Errorf("BindClient() error: %v", err)
		}
	})
	return f
}

func (f *fixture) call(fn func()) {
	f.t.Helper()
	if err := f.loop.Call(f.ctx, fn); err != nil {
		f.t.Fatalf("loop.Call() error: %v", err)
	}
}

func (f *fixture) window(object platform.ObjectID) *shell.Role {
	f.t.Helper()
	var role *shell.Role
	f.call(func() {
		s := surface.New("c1", platform.SurfaceID(object), platform.Size{Width: 100, Height: 100})
		var err error
		role, err = f.registry.CreateRole("c1", object, s)
		if err != nil {
			f.t.Errorf("CreateRole() error: %v", err)
		}
	})
	return role
}

func TestWatchdogCheckNow(t *testing.T) {
	tests := []struct {
		action           shell.UnresponsiveAction
		wantUnresponsive bool
	}{
		{shell.ActionMark, true},
		{shell.ActionIgnore, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			f := newFixture(t)
			role := f.window(1)
			w := NewWatchdog(WatchdogConfig{Policy: LivenessPolicy{Timeout: 5 * time.Second, Action: tt.action}}, f.registry, f.loop)

			res, err := w.CheckNow(f.ctx)
			if err != nil {
				t.Fatalf("CheckNow() error: %v", err)
			}
			if res != (PassResult{Pinged: 1}) {
				t.Fatalf("first CheckNow() = %+v, want 1 ping and no expiry", res)
			}

			f.call(func() { f.clock.Advance(6 * time.Second) })
			res, err = w.CheckNow(f.ctx)
			if err != nil {
				t.Fatalf("CheckNow() error: %v", err)
			}
			if res != (PassResult{Pinged: 1, Expired: 1}) {
				t.Fatalf("second CheckNow() = %+v, want 1 ping and 1 expiry", res)
			}

			var unresponsive bool
			var pending int
			f.call(func() {
				unresponsive = role.Unresponsive()
				pending = role.PendingPings()
			})
			if unresponsive != tt.wantUnresponsive {
				t.Fatalf("Unresponsive() = %v, want %v", unresponsive, tt.wantUnresponsive)
			}
			if pending != 1 {
				t.Fatalf("PendingPings() = %d, want 1", pending)
			}
		})
	}
}

func TestWatchdogRunPings(t *testing.T) {
	f := newFixture(t)
	f.window(1)
	w := NewWatchdog(WatchdogConfig{Policy: LivenessPolicy{Interval: 10 * time.Millisecond, Timeout: time.Minute}}, f.registry, f.loop)

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		var n int
		f.call(func() { n = len(f.sink.pings) })
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watchdog sent %d pings, want at least 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatchdogSetPolicyDisablesPings(t *testing.T) {
	f := newFixture(t)
	f.window(1)
	w := NewWatchdog(WatchdogConfig{Policy: LivenessPolicy{Interval: time.Hour}}, f.registry, f.loop)

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	go w.Run(ctx)

	w.SetPolicy(LivenessPolicy{Interval: 0, Timeout: time.Second})
	if got := w.Policy().Interval; got != 0 {
		t.Fatalf("Policy().Interval = %v, want 0", got)
	}
	time.Sleep(20 * time.Millisecond)

	var n int
	f.call(func() { n = len(f.sink.pings) })
	if n != 0 {
		t.Fatalf("disabled watchdog sent %d pings", n)
	}
}

func TestConfigSynchronizerApply(t *testing.T) {
	f := newFixture(t)
	w := NewWatchdog(WatchdogConfig{}, f.registry, f.loop)
	level := new(slog.LevelVar)
	start := config.DefaultConfig()
	s := NewConfigSynchronizer(start, f.registry, f.loop, w, level, nil)

	next := config.DefaultConfig()
	next.LogLevel = "debug"
	next.Resize = config.ResizeConfig{MinWidth: 64, MinHeight: 48}
	next.Liveness = config.LivenessConfig{PingIntervalSeconds: 0, PingTimeoutSeconds: 2, UnresponsiveAction: config.ActionIgnore}

	restart, err := s.Apply(f.ctx, next)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(restart) != 0 {
		t.Fatalf("Apply() restart = %v, want none", restart)
	}

	var minSize platform.Size
	f.call(func() { minSize = f.registry.MinSize() })
	if minSize != (platform.Size{Width: 64, Height: 48}) {
		t.Fatalf("MinSize() = %+v, want 64x48", minSize)
	}
	if level.Level() != slog.LevelDebug {
		t.Fatalf("level = %v, want debug", level.Level())
	}
	want := LivenessPolicy{Interval: 0, Timeout: 2 * time.Second, Action: shell.ActionIgnore}
	if got := w.Policy(); got != want {
		t.Fatalf("Policy() = %+v, want %+v", got, want)
	}
	if s.Current() != next {
		t.Fatal("Current() should return the applied config")
	}

	if _, err := s.Apply(f.ctx, nil); err == nil {
		t.Fatal("Apply(nil) should fail")
	}
}

func TestRestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{"unchanged", func(*config.Config) {}, nil},
		{"runtime only", func(c *config.Config) { c.LogLevel = "debug"; c.Resize.MinWidth = 10 }, nil},
		{"backend", func(c *config.Config) { c.Backend = config.BackendX11 }, []string{"backend"}},
		{"outputs and seats", func(c *config.Config) {
			c.Outputs = append(c.Outputs, config.OutputConfig{Name: "extra", Width: 1, Height: 1})
			c.Seats = []string{"seat1"}
		}, []string{"outputs", "seats"}},
		{"hotkey and version", func(c *config.Config) {
			c.BreakGrabHotkey = ""
			c.ProtocolVersion = 2
		}, []string{"protocol_version", "break_grab_hotkey"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := config.DefaultConfig()
			tt.mutate(next)
			got := restartRequired(config.DefaultConfig(), next)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("restartRequired() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := restartRequired(nil, config.DefaultConfig()); got != nil {
		t.Fatalf("restartRequired(nil) = %v, want nil", got)
	}
}

func TestHeadlessOutputs(t *testing.T) {
	got := headlessOutputs([]config.OutputConfig{
		{Name: "a", Width: 800, Height: 600},
		{Name: "b", X: 800, Width: 1024, Height: 768, Available: &config.RectConfig{X: 800, Y: 20, Width: 1024, Height: 748}},
	})
	want := []headless.OutputSpec{
		{Name: "a", Geometry: platform.Rect{Width: 800, Height: 600}},
		{Name: "b", Geometry: platform.Rect{X: 800, Width: 1024, Height: 768}, Available: platform.Rect{X: 800, Y: 20, Width: 1024, Height: 748}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("headlessOutputs() = %+v, want %+v", got, want)
	}
}

func TestDaemonServesHeadless(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	level := new(slog.LevelVar)
	d, err := New(Options{
		ConfigPath:     cfgPath,
		Level:          level,
		ProtocolSocket: filepath.Join(dir, "wl.sock"),
		ControlSocket:  filepath.Join(dir, "ctl.sock"),
		DisableWatch:   true,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-runErr:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}()

	client := ipc.NewClientAt(d.ControlSocket())
	deadline := time.Now().Add(2 * time.Second)
	for client.Ping() != nil {
		if time.Now().After(deadline) {
			t.Fatal("control socket never came up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	nc, err := net.Dial("unix", d.ProtocolSocket())
	if err != nil {
		t.Fatalf("dial protocol socket: %v", err)
	}
	defer nc.Close()
	if _, err := nc.Write([]byte(`{"op":"bind","version":1}` + "\n")); err != nil {
		t.Fatalf("write bind: %v", err)
	}
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(nc).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read bound: %v", err)
	}
	var ev struct {
		Op     string `json:"op"`
		Client string `json:"client"`
	}
	if err := json.Unmarshal(line, &ev); err != nil || ev.Op != "bound" || ev.Client == "" {
		t.Fatalf("first event = %s, want bound with a client id", line)
	}

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if status.Backend != config.BackendHeadless || status.Clients != 1 {
		t.Fatalf("GetStatus() = %+v, want headless with 1 client", status)
	}

	if err := os.WriteFile(cfgPath, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := client.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if level.Level() != slog.LevelDebug {
		t.Fatalf("level after reload = %v, want debug", level.Level())
	}
	if d.Config().LogLevel != "debug" {
		t.Fatalf("Config().LogLevel = %q, want debug", d.Config().LogLevel)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "wayland"
	dir := t.TempDir()
	_, err := New(Options{
		ConfigPath:     filepath.Join(dir, "config.yaml"),
		Config:         cfg,
		ProtocolSocket: filepath.Join(dir, "wl.sock"),
		ControlSocket:  filepath.Join(dir, "ctl.sock"),
	})
	if err == nil {
		t.Fatal("New() should reject an unknown backend")
	}
}
