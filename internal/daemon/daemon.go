// Package daemon assembles the shell: it owns the event loop, the registry,
// the display backend and every socket that talks to them.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/headless"
	"github.com/1broseidon/wlshell/internal/ipc"
	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/platform"
	"github.com/1broseidon/wlshell/internal/runtimepath"
	"github.com/1broseidon/wlshell/internal/shell"
	"github.com/1broseidon/wlshell/internal/wire"
	"github.com/hashicorp/go-multierror"
)

const (
	loopDepth     = 1024
	reloadTimeout = 5 * time.Second
)

// Options configures a Daemon.
type Options struct {
	// ConfigPath is watched and reloaded. Empty means the default location.
	ConfigPath string
	// Config is the configuration to start with. When nil it is loaded from
	// ConfigPath.
	Config *config.Config
	// Level is adjusted when log_level changes on reload.
	Level  *slog.LevelVar
	Logger *slog.Logger

	// ProtocolSocket defaults to runtimepath.ProtocolSocketPath().
	ProtocolSocket string
	// ControlSocket defaults to runtimepath.SocketPath().
	ControlSocket string
	// DisableWatch turns off reloading on file change.
	DisableWatch bool
}

// display is a backend with its own event source.
type display interface {
	EventLoop()
	Quit()
	Disconnect()
}

// Daemon is one running shell instance.
type Daemon struct {
	cfgPath string
	watch   bool
	level   *slog.LevelVar
	logger  *slog.Logger

	loop     *loop.Loop
	registry *shell.Registry
	backend  platform.Backend
	display  display
	wire     *wire.Server
	ipc      *ipc.Server
	watchdog *Watchdog
	sync     *ConfigSynchronizer

	protocolSocket string

	reloadMu sync.Mutex
}

// New builds a daemon from opts. Nothing listens until Run.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = path
	}
	cfg := opts.Config
	if cfg == nil {
		res, err := config.LoadFromPath(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = res.Config
	}
	level.Set(cfg.SlogLevel())

	protocolSocket := opts.ProtocolSocket
	if protocolSocket == "" {
		path, err := runtimepath.ProtocolSocketPath()
		if err != nil {
			return nil, err
		}
		protocolSocket = path
	}

	d := &Daemon{
		cfgPath:        cfgPath,
		watch:          !opts.DisableWatch,
		level:          level,
		logger:         logger,
		loop:           loop.New(loopDepth, logger.With("component", "loop")),
		protocolSocket: protocolSocket,
	}

	var input wire.Input
	switch cfg.Backend {
	case config.BackendHeadless:
		hb := headless.New(headlessOutputs(cfg.Outputs), cfg.Seats)
		d.backend = hb
		input = hb
	case config.BackendX11:
		b, disp, err := d.openX11(cfg)
		if err != nil {
			return nil, err
		}
		d.backend = b
		d.display = disp
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	d.registry = shell.NewRegistry(shell.Config{
		Backend: d.backend,
		Version: cfg.ProtocolVersion,
		MinSize: minSizeFromConfig(cfg),
		Logger:  logger.With("component", "shell"),
	})
	d.wire = wire.NewServer(wire.ServerConfig{
		Registry: d.registry,
		Loop:     d.loop,
		Input:    input,
		Logger:   logger.With("component", "wire"),
	})
	d.watchdog = NewWatchdog(WatchdogConfig{
		Policy: policyFromConfig(cfg),
		Logger: logger.With("component", "watchdog"),
	}, d.registry, d.loop)
	d.sync = NewConfigSynchronizer(cfg, d.registry, d.loop, d.watchdog, level, logger.With("component", "config"))

	ipcServer, err := ipc.NewServer(ipc.ServerConfig{
		SocketPath: opts.ControlSocket,
		Registry:   d.registry,
		Loop:       d.loop,
		Backend:    cfg.Backend,
		Reload:     d.Reload,
		Logger:     logger.With("component", "ipc"),
	})
	if err != nil {
		d.closeDisplay()
		return nil, err
	}
	d.ipc = ipcServer

	return d, nil
}

// Registry returns the shell registry. Use it only from the event loop.
func (d *Daemon) Registry() *shell.Registry { return d.registry }

// Loop returns the event loop.
func (d *Daemon) Loop() *loop.Loop { return d.loop }

// ProtocolSocket returns where clients connect.
func (d *Daemon) ProtocolSocket() string { return d.protocolSocket }

// ControlSocket returns where the CLI connects.
func (d *Daemon) ControlSocket() string { return d.ipc.SocketPath() }

// Config returns the configuration currently applied.
func (d *Daemon) Config() *config.Config { return d.sync.Current() }

// Run serves until ctx is cancelled and then shuts everything down.
func (d *Daemon) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- d.loop.Run(loopCtx) }()

	if err := d.wire.Listen(d.protocolSocket); err != nil {
		stopLoop()
		d.closeDisplay()
		return err
	}
	if err := d.ipc.Start(); err != nil {
		stopLoop()
		d.wire.Close()
		d.closeDisplay()
		return err
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		serveErr <- d.wire.Serve(ctx)
	}()
	go func() {
		defer wg.Done()
		d.watchdog.Run(ctx)
	}()
	if d.watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.watchConfig(ctx)
		}()
	}
	if d.display != nil {
		go d.display.EventLoop()
	}

	cfg := d.sync.Current()
	d.logger.Info("wlshell daemon started",
		"backend", cfg.Backend,
		"protocol_version", d.registry.Version(),
		"protocol_socket", d.protocolSocket,
		"control_socket", d.ipc.SocketPath())

	var result *multierror.Error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("protocol server: %w", err))
		}
	}

	d.logger.Info("shutting down wlshell daemon")
	d.ipc.Stop()
	if err := d.wire.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if n, err := d.cancelGrabs(); err == nil && n > 0 {
		d.logger.Info("cancelled grabs on shutdown", "count", n)
	}
	d.closeDisplay()
	stopLoop()
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		result = multierror.Append(result, err)
	}
	wg.Wait()

	return result.ErrorOrNil()
}

// Reload reads the config file again and applies what can change at
// runtime.
func (d *Daemon) Reload() error {
	res, err := config.LoadFromPath(d.cfgPath)
	if err != nil {
		return err
	}
	return d.apply(res.Config)
}

func (d *Daemon) apply(cfg *config.Config) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	_, err := d.sync.Apply(ctx, cfg)
	return err
}

func (d *Daemon) watchConfig(ctx context.Context) {
	err := config.Watch(ctx, d.cfgPath, func(res *config.LoadResult, err error) {
		if err != nil {
			d.logger.Warn("config reload failed", "path", d.cfgPath, "error", err)
			return
		}
		d.logger.Info("config file changed", "path", d.cfgPath)
		if err := d.apply(res.Config); err != nil {
			d.logger.Warn("config apply failed", "error", err)
		}
	})
	if err != nil {
		d.logger.Warn("config watch disabled", "error", err)
	}
}

// cancelGrabs ends every grab from outside the loop.
func (d *Daemon) cancelGrabs() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var n int
	err := d.loop.Call(ctx, func() { n = d.registry.CancelGrabs() })
	return n, err
}

// breakGrabs is bound to the break-grab hotkey.
func (d *Daemon) breakGrabs() {
	err := d.loop.Post(func() {
		if n := d.registry.CancelGrabs(); n > 0 {
			d.logger.Info("grabs broken by hotkey", "count", n)
		}
	})
	if err != nil {
		d.logger.Debug("break grabs dropped", "error", err)
	}
}

func (d *Daemon) post(fn func()) {
	if err := d.loop.Post(fn); err != nil {
		d.logger.Debug("display event dropped", "error", err)
	}
}

func (d *Daemon) closeDisplay() {
	if d.display == nil {
		return
	}
	d.display.Quit()
	d.display.Disconnect()
	d.display = nil
}

func headlessOutputs(outputs []config.OutputConfig) []headless.OutputSpec {
	specs := make([]headless.OutputSpec, 0, len(outputs))
	for _, o := range outputs {
		spec := headless.OutputSpec{
			Name:     o.Name,
			Geometry: platform.Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height},
		}
		if a := o.Available; a != nil {
			spec.Available = platform.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
		}
		specs = append(specs, spec)
	}
	return specs
}
