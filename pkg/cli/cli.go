// Package cli provides the command-line interface for uia2-server.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uia2-server/pkg/config"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: <home>/config.yaml)",
		EnvVars: []string{"UIA2_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "adb serial of the device to serve (auto-detected when empty)",
	},
	&cli.IntFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Usage:   "Server port",
	},
	&cli.BoolFlag{
		Name:  "multi-window",
		Usage: "Search all visible windows instead of the active one",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error)",
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Log file path (default: <home>/logs/server.log)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log to stderr at debug level",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "uia2-server",
		Usage:   "WebDriver-style automation server for Android accessibility trees",
		Version: Version,
		Description: `uia2-server answers WebDriver-shaped HTTP commands by querying the
accessibility tree of an Android device over adb.

Examples:
  uia2-server serve
  uia2-server --port 6790 --multi-window serve
  uia2-server status
  uia2-server find --strategy id com.app:id/login
  uia2-server hierarchy --device emulator-5554`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			serveCommand,
			statusCommand,
			findCommand,
			hierarchyCommand,
		},
	}
}

// loadConfig resolves configuration: file, then UIA2_* env, then flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(config.Home())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("multi-window") {
		cfg.MultiWindow = c.Bool("multi-window")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
