package config

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the server home directory.
const EnvHome = "UIA2_SERVER_HOME"

// Home is where config.yaml and logs/ live: $UIA2_SERVER_HOME, else <home>
// when the binary sits in <home>/bin, else the working directory.
func Home() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
