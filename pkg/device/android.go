// Package device provides the adb-backed Android implementation of the
// platform interfaces.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/devicelab-dev/uia2-server/pkg/logger"
)

// Runner executes one adb invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// execRunner runs the adb binary.
type execRunner struct {
	adbPath string
}

func (r execRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.adbPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	runner  Runner
	version string

	idleTimeout  time.Duration
	idleInterval time.Duration
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Release    string
	Brand      string
	IsEmulator bool
}

// Options tunes the accessibility adapter.
type Options struct {
	IdleTimeout  time.Duration // Bound on WaitForIdle, default 10s
	IdleInterval time.Duration // Gap between dumps while waiting, default 250ms
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(ctx context.Context, serial string, opts Options) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	runner := execRunner{adbPath: adbPath}

	if serial == "" {
		serial, err = detectDeviceSerial(ctx, runner)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	d := NewWithRunner(serial, runner, opts)
	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	if err := d.loadVersion(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithRunner creates a device that sends adb invocations to runner.
// The platform version is read lazily on first use.
func NewWithRunner(serial string, runner Runner, opts Options) *AndroidDevice {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Second
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = 250 * time.Millisecond
	}
	return &AndroidDevice{
		serial:       serial,
		runner:       runner,
		idleTimeout:  opts.IdleTimeout,
		idleInterval: opts.IdleInterval,
	}
}

// detectDeviceSerial finds the first connected device serial.
func detectDeviceSerial(ctx context.Context, runner Runner) (string, error) {
	out, err := runner.Run(ctx, "devices")
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// Version returns the platform release, e.g. "13" or "4.4.2".
func (d *AndroidDevice) Version() string {
	if d.version == "" {
		if err := d.loadVersion(context.Background()); err != nil {
			logger.Warn("read platform version: %v", err)
		}
	}
	return d.version
}

func (d *AndroidDevice) loadVersion(ctx context.Context) error {
	out, err := d.Shell(ctx, "getprop ro.build.version.release")
	if err != nil {
		return fmt.Errorf("read platform version: %w", err)
	}
	d.version = strings.TrimSpace(out)
	return nil
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.Shell(ctx, "getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell(ctx, "getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if release, err := d.Shell(ctx, "getprop ro.build.version.release"); err == nil {
		info.Release = strings.TrimSpace(release)
	}
	if brand, err := d.Shell(ctx, "getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	chars, _ := d.Shell(ctx, "getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// adb executes an ADB command against this device.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)
	return d.runner.Run(ctx, cmdArgs...)
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.isConnected(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adb(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
