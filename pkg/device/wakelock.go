package device

import (
	"context"
	"time"
)

const wakeLockTimeout = 10 * time.Second

// WakeLock keeps the screen on while the device is plugged in.
type WakeLock struct {
	dev *AndroidDevice
}

// NewWakeLock creates a wake-lock for d.
func NewWakeLock(d *AndroidDevice) *WakeLock {
	return &WakeLock{dev: d}
}

// Acquire implements platform.WakeLock.
func (w *WakeLock) Acquire() error {
	return w.stayOn("true")
}

// Release implements platform.WakeLock.
func (w *WakeLock) Release() error {
	return w.stayOn("false")
}

func (w *WakeLock) stayOn(mode string) error {
	ctx, cancel := context.WithTimeout(context.Background(), wakeLockTimeout)
	defer cancel()
	_, err := w.dev.Shell(ctx, "svc power stayon "+mode)
	return err
}
