package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uia2-server/pkg/config"
	"github.com/devicelab-dev/uia2-server/pkg/device"
	"github.com/devicelab-dev/uia2-server/pkg/platform/mock"
	"github.com/devicelab-dev/uia2-server/pkg/uiautomator2"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node text="" resource-id="" class="android.widget.FrameLayout" package="com.app" bounds="[0,0][1080,2400]">
    <node text="Login, please" resource-id="com.app:id/login" class="android.widget.Button" package="com.app" bounds="[100,300][500,400]" />
  </node>
</hierarchy>`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"UIA2_CONFIG", "UIA2_PORT", "UIA2_MULTI_WINDOW", "UIA2_DEVICE", "UIA2_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

// runLoadConfig runs a throwaway command that captures loadConfig's result.
func runLoadConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var cfg *config.Config
	var loadErr error
	app := &cli.App{
		Name:  "test-app",
		Flags: GlobalFlags,
		Commands: []*cli.Command{{
			Name: "capture",
			Action: func(c *cli.Context) error {
				cfg, loadErr = loadConfig(c)
				return nil
			},
		}},
	}
	if err := app.Run(append([]string{"test-app"}, args...)); err != nil {
		t.Fatalf("app.Run() error: %v", err)
	}
	return cfg, loadErr
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestGlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{"config", "device", "port", "p", "multi-window", "log-level", "log-file", "verbose"} {
		if !flagNames[name] {
			t.Errorf("expected flag %q to be defined", name)
		}
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := map[string]bool{"serve": false, "status": false, "find": false, "hierarchy": false}
	for _, cmd := range app.Commands {
		if _, ok := want[cmd.Name]; ok {
			want[cmd.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "port: 7000\nmultiWindow: true\nlogLevel: warn\n")

	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		port     int
		level    string
		multiWin bool
	}{
		{"file", nil, []string{"--config", path, "capture"}, 7000, "warn", true},
		{"env over file", map[string]string{"UIA2_PORT": "7200"}, []string{"--config", path, "capture"}, 7200, "warn", true},
		{"flag over env", map[string]string{"UIA2_PORT": "7200"}, []string{"--config", path, "--port", "7100", "capture"}, 7100, "warn", true},
		{"verbose", nil, []string{"--config", path, "--verbose", "capture"}, 7000, "debug", true},
		{"flag disables", nil, []string{"--config", path, "--multi-window=false", "capture"}, 7000, "warn", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := runLoadConfig(t, tt.args...)
			if err != nil {
				t.Fatalf("loadConfig() error: %v", err)
			}
			if cfg.Port != tt.port {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.port)
			}
			if cfg.LogLevel != tt.level {
				t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, tt.level)
			}
			if cfg.MultiWindow != tt.multiWin {
				t.Errorf("MultiWindow = %v, want %v", cfg.MultiWindow, tt.multiWin)
			}
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "port: 7000\n")

	if _, err := runLoadConfig(t, "--config", path, "--port", "80", "capture"); err == nil {
		t.Error("expected error for port 80")
	}
	if _, err := runLoadConfig(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "capture"); err == nil {
		t.Error("expected error for missing config file")
	}

	t.Setenv("UIA2_PORT", "abc")
	if _, err := runLoadConfig(t, "--config", path, "capture"); err == nil {
		t.Error("expected error for non-numeric UIA2_PORT")
	}
}

func TestFindCommand_NoArgs(t *testing.T) {
	app := &cli.App{
		Name:     "test-app",
		Flags:    GlobalFlags,
		Commands: []*cli.Command{findCommand},
	}
	err := app.Run([]string{"test-app", "find", "--url", "http://127.0.0.1:1"})
	if err == nil || !strings.Contains(err.Error(), "exactly one selector") {
		t.Errorf("expected selector argument error, got %v", err)
	}
}

func TestStatusCommand_Unreachable(t *testing.T) {
	app := &cli.App{
		Name:     "test-app",
		Flags:    GlobalFlags,
		Commands: []*cli.Command{statusCommand},
	}
	err := app.Run([]string{"test-app", "status", "--url", "http://127.0.0.1:1"})
	if err == nil || !strings.Contains(err.Error(), "server not reachable") {
		t.Errorf("expected unreachable error, got %v", err)
	}
}

func TestServe(t *testing.T) {
	dev := mock.New(mock.Config{Version: "13"})
	dev.SetRoot(mock.NewNode(map[string]string{"class": "android.widget.FrameLayout"},
		mock.NewNode(map[string]string{"class": "android.widget.Button", "text": "Login", "enabled": "true"}),
	))
	wl := &mock.WakeLock{}

	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.RootRetry.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, backend{dev: dev, factory: dev, wakeLock: wl})
	}()

	client := uiautomator2.NewClientTCP(cfg.Port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := client.Status(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not become ready")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !wl.Held() {
		t.Error("wake lock should be held while serving")
	}

	var out bytes.Buffer
	if err := printStatus(&out, client); err != nil {
		t.Fatalf("printStatus() error: %v", err)
	}
	if !strings.Contains(out.String(), "Platform:     13") {
		t.Errorf("status output missing platform:\n%s", out.String())
	}

	out.Reset()
	if err := printMatches(&out, client, uiautomator2.StrategyText, "Login"); err != nil {
		t.Fatalf("printMatches() error: %v", err)
	}
	if !strings.Contains(out.String(), "text:") || !strings.Contains(out.String(), "Login") {
		t.Errorf("find output missing text:\n%s", out.String())
	}

	out.Reset()
	if err := printMatches(&out, client, uiautomator2.StrategyText, "Register"); err != nil {
		t.Fatalf("printMatches(no match) error: %v", err)
	}
	if !strings.Contains(out.String(), "No elements found") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	if wl.Held() {
		t.Error("wake lock should be released after shutdown")
	}
	if _, err := client.Status(); err == nil {
		t.Error("server should not answer after shutdown")
	}
}

func TestServe_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	dev := mock.New(mock.Config{})
	cfg := config.Default()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	if err := serve(context.Background(), cfg, backend{dev: dev, factory: dev}); err == nil {
		t.Error("expected bind error")
	}
}

func TestWriteHierarchyTree(t *testing.T) {
	h, err := device.ParseHierarchy(sampleDump)
	if err != nil {
		t.Fatalf("ParseHierarchy() error: %v", err)
	}
	var out bytes.Buffer
	writeHierarchyTree(&out, h)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "Window 0 (com.app)" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "    android.widget.Button") || !strings.Contains(lines[2], `text="Login, please"`) {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestWriteHierarchyCSV(t *testing.T) {
	h, err := device.ParseHierarchy(sampleDump)
	if err != nil {
		t.Fatalf("ParseHierarchy() error: %v", err)
	}
	var out bytes.Buffer
	if err := writeHierarchyCSV(&out, h); err != nil {
		t.Fatalf("writeHierarchyCSV() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "depth,class,text,resource-id,content-desc,bounds" {
		t.Errorf("header = %q", lines[0])
	}
	want := `1,android.widget.Button,"Login, please",com.app:id/login,,"[100,300][500,400]"`
	if lines[2] != want {
		t.Errorf("row = %q, want %q", lines[2], want)
	}
}
