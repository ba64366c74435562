package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/1broseidon/wlshell/internal/config"
	"github.com/1broseidon/wlshell/internal/daemon"
	"github.com/1broseidon/wlshell/internal/ipc"
	"github.com/1broseidon/wlshell/internal/tui"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "popups":
		os.Exit(runPopups(os.Args[2:]))
	case "ping":
		os.Exit(runPing(os.Args[2:]))
	case "break-grabs":
		os.Exit(runBreakGrabs(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "top":
		os.Exit(runTop(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: wlshell <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the shell daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  windows             List window roles")
	fmt.Fprintln(w, "  popups              List popup stacks and active grabs")
	fmt.Fprintln(w, "  ping                Ping a window")
	fmt.Fprintln(w, "  break-grabs         Cancel every active pointer grab")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  top                 Live view of windows, grabs and popups")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'wlshell <command> --help' for command-specific options.")
}

// noArgs parses a flag set that takes no positional arguments.
func noArgs(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2, false
	}
	return 0, true
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	fmt.Printf("daemon_running:   %v\n", status.DaemonRunning)
	fmt.Printf("backend:          %s\n", status.Backend)
	fmt.Printf("protocol_version: %d\n", status.ProtocolVersion)
	fmt.Printf("clients:          %d\n", status.Clients)
	fmt.Printf("windows:          %d\n", status.Windows)
	fmt.Printf("active_grabs:     %d\n", status.ActiveGrabs)
	fmt.Printf("popup_stacks:     %d\n", status.PopupStacks)
	fmt.Printf("uptime_seconds:   %d\n", status.UptimeSeconds)
	return 0
}

func runWindows(args []string) int {
	fs := flag.NewFlagSet("windows", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell windows [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List every window role known to the daemon.")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().ListWindows()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	if len(data.Windows) == 0 {
		fmt.Println("no windows")
		return 0
	}
	fmt.Printf("%-36s %6s %7s %-9s %-10s %-10s %-20s %s\n", "CLIENT", "OBJECT", "SURFACE", "ROLE", "STATE", "OUTPUT", "GEOMETRY", "FLAGS")
	for _, w := range data.Windows {
		flags := ""
		if w.Grab != "" {
			flags += "grab:" + w.Grab + " "
		}
		if !w.Visible {
			flags += "hidden "
		}
		if w.Unresponsive {
			flags += "unresponsive"
		}
		fmt.Printf("%-36s %6d %7d %-9s %-10s %-10s %-20s %s\n",
			w.Client, w.Object, w.Surface, w.Role, w.State, w.Output,
			fmt.Sprintf("%dx%d+%d+%d", w.Width, w.Height, w.X, w.Y), flags)
	}
	return 0
}

func runPopups(args []string) int {
	fs := flag.NewFlagSet("popups", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell popups [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List popup stacks (bottom first) and active pointer grabs.")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().ListPopups()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	fmt.Println("grabs:")
	if len(data.Grabs) == 0 {
		fmt.Println("  none")
	}
	for _, g := range data.Grabs {
		fmt.Printf("  device %d: %s\n", g.Device, g.Kind)
	}
	fmt.Println("popup stacks:")
	if len(data.Stacks) == 0 {
		fmt.Println("  none")
	}
	for _, st := range data.Stacks {
		fmt.Printf("  device %d: client %s serial %d\n", st.Device, st.Client, st.Serial)
		for i, p := range st.Popups {
			fmt.Printf("    %d. object %d surface %d\n", i+1, p.Object, p.Surface)
		}
	}
	return 0
}

func runPing(args []string) int {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	clientID := fs.String("client", "", "Client id owning the surface")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell ping [--client ID] <surface>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Send a liveness ping to the window on a surface.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	surface, err := strconv.ParseUint(fs.Arg(0), 10, 32)
	if err != nil || surface == 0 {
		fmt.Fprintf(os.Stderr, "invalid surface id %q\n", fs.Arg(0))
		return 2
	}

	data, err := ipc.NewClient().PingWindow(*clientID, uint32(surface))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("pinged client %s object %d (serial %d)\n", data.Client, data.Object, data.Serial)
	return 0
}

func runBreakGrabs(args []string) int {
	fs := flag.NewFlagSet("break-grabs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell break-grabs")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Force-end every move, resize and popup grab.")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	n, err := ipc.NewClient().BreakGrabs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("cancelled %d grab(s)\n", n)
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell reload")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  wlshell config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  wlshell config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  wlshell config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/wlshell/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/wlshell/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			for _, f := range res.Files {
				fmt.Printf("# loaded: %s\n", f)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/wlshell/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}

func runTop(args []string) int {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	interval := fs.Duration("interval", tui.DefaultInterval, "Refresh interval")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell top [--interval 1s]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab, 1/2   Switch between windows and popups")
		fmt.Fprintln(os.Stderr, "  j/k, ↑/↓   Select window")
		fmt.Fprintln(os.Stderr, "  p          Ping selected window")
		fmt.Fprintln(os.Stderr, "  b          Break all grabs")
		fmt.Fprintln(os.Stderr, "  r          Refresh now")
		fmt.Fprintln(os.Stderr, "  q, Esc     Quit")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	if err := tui.New(ipc.NewClient(), *interval).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/wlshell/config.yaml)")
	noWatch := fs.Bool("no-watch", false, "Do not reload when the config file changes")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlshell daemon [--path PATH] [--no-watch]")
	}
	if code, ok := noArgs(fs, args); !ok {
		return code
	}

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	d, err := daemon.New(daemon.Options{
		ConfigPath:   *path,
		Level:        level,
		Logger:       logger,
		DisableWatch: *noWatch,
	})
	if err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, reloading config")
				if err := d.Reload(); err != nil {
					logger.Warn("config reload failed", "error", err)
				}
			}
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped with errors", "error", err)
		return 1
	}
	return 0
}
