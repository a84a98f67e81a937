package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uia2-server/pkg/config"
	"github.com/devicelab-dev/uia2-server/pkg/device"
	"github.com/devicelab-dev/uia2-server/pkg/handler"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/resolver"
	"github.com/devicelab-dev/uia2-server/pkg/server"
	"github.com/devicelab-dev/uia2-server/pkg/session"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Run the automation server until interrupted",
	Description: `Connect to the device over adb and serve commands on the configured port.
The server stops on SIGINT or SIGTERM.

Examples:
  uia2-server serve
  uia2-server --device emulator-5554 --port 8200 serve`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-wake-lock",
			Usage: "Do not keep the screen on while serving",
		},
	},
	Action: runServe,
}

// backend is what serve needs from a device.
type backend struct {
	dev      platform.Device
	factory  platform.ObjectFactory
	wakeLock platform.WakeLock
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("no-wake-lock") {
		cfg.WakeLock = false
	}

	if c.Bool("verbose") {
		logger.InitWriter(os.Stderr)
	} else if err := logger.Init(cfg.LogPath()); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dev, err := device.New(ctx, cfg.Device, device.Options{IdleTimeout: cfg.IdleTimeout})
	if err != nil {
		return err
	}
	if info, err := dev.Info(ctx); err == nil {
		logger.Info("Connected to %s %s (Android %s, SDK %s, emulator=%v)",
			info.Brand, info.Model, info.Release, info.SDK, info.IsEmulator)
	}

	b := backend{dev: dev, factory: dev}
	if cfg.WakeLock {
		b.wakeLock = device.NewWakeLock(dev)
	}

	fmt.Printf("Serving on port %d (device %s)\n", cfg.Port, dev.Serial())
	return serve(ctx, cfg, b)
}

// serve runs the server until ctx is cancelled or the serve loop dies.
func serve(ctx context.Context, cfg *config.Config, b backend) error {
	res := resolver.New(b.dev, b.factory, resolver.Options{
		MultiWindow:  cfg.MultiWindow,
		RootAttempts: cfg.RootRetry.Attempts,
		RootInterval: cfg.RootRetry.Interval,
	})
	sess := session.New()

	router := server.NewRouter(server.Deps{
		Session: sess,
		Finder:  res,
		Status: &handler.Status{
			Version:     Version,
			Platform:    b.dev.Version(),
			MultiWindow: res.MultiWindow(),
		},
		MaxInFlight: cfg.MaxInFlight,
	})

	host := server.NewHost(func() (*server.Runtime, error) {
		return server.New(server.Options{
			Port:            cfg.Port,
			ShutdownTimeout: cfg.ShutdownTimeout,
			WakeLock:        b.wakeLock,
			OnStop:          sess.Close,
		}, router)
	})

	rt, err := host.Instance()
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}
	logger.Info("Session %s ready, multi-window=%v", sess.ID(), res.MultiWindow())

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case <-rt.Done():
		logger.Error("Serve loop exited unexpectedly")
	}
	return host.Stop()
}
