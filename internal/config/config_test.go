package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Resize.MinWidth != 1 || cfg.Resize.MinHeight != 1 {
		t.Fatalf("expected 1x1 resize floor, got %+v", cfg.Resize)
	}
	if cfg.PingTimeout() != 5*time.Second || cfg.PingInterval() != 10*time.Second {
		t.Fatalf("unexpected liveness defaults: %+v", cfg.Liveness)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != BackendHeadless || len(res.Files) != 0 {
		t.Fatalf("expected defaults, got %+v", res.Config)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.LogLevel != "info" {
		t.Fatalf("expected log_level info, got %q", res.Config.LogLevel)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	data := strings.Join([]string{
		"log_level: debug",
		"resize:",
		"  min_width: 64",
		"liveness:",
		"  unresponsive_action: ignore",
		"outputs:",
		"  - name: left",
		"    width: 1280",
		"    height: 1024",
		"  - name: right",
		"    x: 1280",
		"    width: 1920",
		"    height: 1080",
		"    available: {x: 1280, y: 32, width: 1920, height: 1048}",
		"seats: [seat0, seat1]",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.LogLevel != "debug" || cfg.Resize.MinWidth != 64 || cfg.Resize.MinHeight != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Liveness.UnresponsiveAction != ActionIgnore || cfg.Liveness.PingTimeoutSeconds != 5 {
		t.Fatalf("unexpected liveness: %+v", cfg.Liveness)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].Available == nil || cfg.Outputs[1].Available.Y != 32 {
		t.Fatalf("unexpected outputs: %+v", cfg.Outputs)
	}
	if len(cfg.Seats) != 2 {
		t.Fatalf("unexpected seats: %v", cfg.Seats)
	}
}

func TestLoadFromPath_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "gap_size: 4\n")
	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
}

func TestLoadFromPath_CollectsAllProblems(t *testing.T) {
	data := strings.Join([]string{
		"log_level: loud",
		"backend: wayland",
		"resize:",
		"  min_height: 0",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	_, err := LoadFromPath(path)
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected multierror, got %T %v", err, err)
	}
	if len(merr.Errors) != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", len(merr.Errors), err)
	}

	var verr *ValidationError
	if !errors.As(merr.Errors[0], &verr) {
		t.Fatalf("expected ValidationError, got %T", merr.Errors[0])
	}
	if verr.Path != "log_level" || verr.Source.Line != 1 {
		t.Fatalf("expected log_level at line 1, got %s line %d", verr.Path, verr.Source.Line)
	}
	if !strings.Contains(err.Error(), "config.yaml:4:") {
		t.Fatalf("expected file location for resize.min_height, got %v", err)
	}
}

func TestValidate_Outputs(t *testing.T) {
	tests := []struct {
		name    string
		outputs []OutputConfig
		wantErr string
	}{
		{"ok", []OutputConfig{{Name: "a", Width: 1, Height: 1}}, ""},
		{"empty", nil, "at least one output"},
		{"unnamed", []OutputConfig{{Width: 1, Height: 1}}, "output name is required"},
		{"duplicate", []OutputConfig{{Name: "a", Width: 1, Height: 1}, {Name: "a", Width: 1, Height: 1}}, "duplicate output name"},
		{"zero size", []OutputConfig{{Name: "a"}}, "output size must be positive"},
		{"bad available", []OutputConfig{{Name: "a", Width: 1, Height: 1, Available: &RectConfig{}}}, "available size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Outputs = tt.outputs
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_X11NeedsNoOutputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendX11
	cfg.Outputs = nil
	cfg.Seats = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestIncludes(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "conf.d")
	if err := os.Mkdir(incDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, incDir, "10-liveness.yaml", "liveness:\n  ping_timeout_seconds: 9\n  ping_interval_seconds: 30\n")
	writeConfig(t, incDir, "20-more.yaml", "liveness:\n  ping_timeout_seconds: 12\n")
	path := writeConfig(t, dir, "config.yaml", "include: conf.d\nlog_level: warning\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Liveness.PingTimeoutSeconds != 12 || res.Config.Liveness.PingIntervalSeconds != 30 {
		t.Fatalf("unexpected liveness: %+v", res.Config.Liveness)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", res.Files)
	}

	_, src, err := Explain(res, "liveness.ping_timeout_seconds")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if filepath.Base(src.File) != "20-more.yaml" {
		t.Fatalf("expected source 20-more.yaml, got %+v", src)
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")
	_, err := LoadFromPath(filepath.Join(dir, "a.yaml"))
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestExplain(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "outputs:\n  - name: wide\n    width: 3440\n    height: 1440\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		path     string
		want     any
		wantKind SourceKind
	}{
		{"outputs.0.width", 3440, SourceFile},
		{"outputs.0.name", "wide", SourceFile},
		{"log_level", "info", SourceDefault},
		{"resize.min_width", 1, SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, src, err := Explain(res, tt.path)
			if err != nil {
				t.Fatalf("Explain() error: %v", err)
			}
			if got != tt.want || src.Kind != tt.wantKind {
				t.Fatalf("Explain() = %v (%s), want %v (%s)", got, src.Kind, tt.want, tt.wantKind)
			}
		})
	}

	if _, _, err := Explain(res, "outputs.3.name"); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, _, err := Explain(res, "hotkey"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Liveness.UnresponsiveAction = ActionIgnore

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Liveness.UnresponsiveAction != ActionIgnore {
		t.Fatalf("expected ignore, got %q", res.Config.Liveness.UnresponsiveAction)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "nope"
	if err := cfg.SaveTo(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Fatalf("expected invalid config to be refused")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if path != "/home/test/.config/wlshell/config.yaml" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan *LoadResult, 4)
	errs := make(chan error, 4)
	go Watch(ctx, path, func(res *LoadResult, err error) {
		if err != nil {
			errs <- err
			return
		}
		results <- res
	})

	// Rewrite slower than the debounce until the watcher has registered.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case res := <-results:
			if res.Config.LogLevel == "debug" {
				return
			}
		case err := <-errs:
			t.Fatalf("watch: %v", err)
		case <-tick.C:
			writeConfig(t, dir, "config.yaml", "log_level: debug\n")
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
