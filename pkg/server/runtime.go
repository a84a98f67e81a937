// Package server hosts the command handlers: the runtime owns the listener,
// the serve loop and the wake-lock; the router maps routes to handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/devicelab-dev/uia2-server/pkg/config"
	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
)

// State is the lifecycle state of a Runtime.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Runtime.
type Options struct {
	Port            int
	Host            string        // Bind address, empty for all interfaces
	ShutdownTimeout time.Duration // Bound on Stop, default 5s
	WakeLock        platform.WakeLock
	OnStop          func() // Runs once per Stop of a started runtime
}

// loop is one run of the serve loop.
type loop struct {
	srv  *http.Server
	ln   net.Listener
	stop chan struct{}
	done chan struct{}
	err  error
}

func (l *loop) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Runtime owns the listener and the serve loop. Start and Stop are
// serialized; calling either twice is a no-op.
type Runtime struct {
	opts    Options
	handler http.Handler

	mu    sync.Mutex
	state State
	loop  *loop

	wakeMu   sync.Mutex
	wakeHeld bool
}

// New validates the port and creates a stopped runtime.
func New(opts Options, handler http.Handler) (*Runtime, error) {
	if !config.IsValidPort(opts.Port) {
		return nil, core.ErrInvalidPort.
			WithMessagef("invalid port %d: must be in range %d..%d", opts.Port, config.MinPort, config.MaxPort)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.WakeLock == nil {
		opts.WakeLock = platform.NopWakeLock{}
	}
	return &Runtime{opts: opts, handler: handler}, nil
}

// Addr returns the listening address, or "" when not running.
func (r *Runtime) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loop == nil {
		return ""
	}
	return r.loop.ln.Addr().String()
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning && !r.loop.alive() {
		return StateStopped
	}
	return r.state
}

// Done is closed when the current serve loop exits. It is nil when the
// runtime was never started.
func (r *Runtime) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loop == nil {
		return nil
	}
	return r.loop.done
}

// Start binds the listener and spawns the serve loop. A live loop makes it a
// no-op; a loop that died is torn down and replaced. Bind failures are
// returned before any goroutine is spawned.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loop != nil {
		if r.loop.alive() {
			return nil
		}
		logger.Warn("server loop exited (%v), restarting", r.loop.err)
		r.teardown(r.loop)
	}

	r.state = StateStarting
	addr := net.JoinHostPort(r.opts.Host, fmt.Sprint(r.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		r.state = StateStopped
		return core.ErrListenerBind.WithMessagef("failed to listen on %s", addr).WithCause(err)
	}

	l := &loop{
		srv: &http.Server{
			Handler:           r.handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:   ln,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ready := make(chan struct{})
	go r.run(l, ready)
	<-ready

	r.loop = l
	r.state = StateRunning
	logger.Info("server listening on %s", ln.Addr())
	return nil
}

// run is the serve loop: it holds the wake-lock, serves until told to stop
// or until the listener fails.
func (r *Runtime) run(l *loop, ready chan<- struct{}) {
	defer close(l.done)

	r.acquireWakeLock()

	served := make(chan error, 1)
	go func() {
		served <- l.srv.Serve(l.ln)
	}()
	close(ready)

	select {
	case <-l.stop:
		<-served
	case err := <-served:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server loop failed: %v", err)
			l.err = err
		}
	}
}

// Stop releases the wake-lock, signals the loop and joins it within the
// shutdown timeout. Stopping a stopped runtime does nothing.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releaseWakeLock()
	if r.loop == nil {
		return nil
	}
	err := r.teardown(r.loop)
	if r.opts.OnStop != nil {
		r.opts.OnStop()
	}
	logger.Info("server stopped")
	return err
}

// teardown stops l and waits for it. Callers hold r.mu.
func (r *Runtime) teardown(l *loop) error {
	r.releaseWakeLock()
	close(l.stop)

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()

	var err error
	if shutdownErr := l.srv.Shutdown(ctx); shutdownErr != nil {
		err = fmt.Errorf("failed to shutdown server: %w", shutdownErr)
	}
	select {
	case <-l.done:
	case <-ctx.Done():
		logger.Warn("server loop did not exit within %v", r.opts.ShutdownTimeout)
	}

	r.loop = nil
	r.state = StateStopped
	return err
}

func (r *Runtime) acquireWakeLock() {
	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	if r.wakeHeld {
		return
	}
	if err := r.opts.WakeLock.Acquire(); err != nil {
		logger.Warn("failed to acquire wake lock: %v", err)
		return
	}
	r.wakeHeld = true
}

func (r *Runtime) releaseWakeLock() {
	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	if !r.wakeHeld {
		return
	}
	if err := r.opts.WakeLock.Release(); err != nil {
		logger.Warn("failed to release wake lock: %v", err)
	}
	r.wakeHeld = false
}

// Host owns at most one Runtime. Instance creates it on first use; Stop
// tears it down so the next Instance call builds a fresh one.
type Host struct {
	mu      sync.Mutex
	rt      *Runtime
	factory func() (*Runtime, error)
}

// NewHost creates a Host that builds runtimes with factory.
func NewHost(factory func() (*Runtime, error)) *Host {
	return &Host{factory: factory}
}

// Instance returns the current runtime, creating it if needed.
func (h *Host) Instance() (*Runtime, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rt != nil {
		return h.rt, nil
	}
	rt, err := h.factory()
	if err != nil {
		return nil, err
	}
	h.rt = rt
	return rt, nil
}

// Stop stops and forgets the current runtime. It does nothing when there is
// none.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rt == nil {
		return nil
	}
	err := h.rt.Stop()
	h.rt = nil
	return err
}
