// Package mock provides a scriptable in-memory device for testing without a
// real accessibility tree.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// Config configures mock device behavior.
type Config struct {
	// Version is the platform release to report (default "13").
	Version string
	// NullRoots makes the first N RootInActiveWindow calls return no root.
	// A negative value never returns a root.
	NullRoots int
	// FactoryErr makes NewObject fail.
	FactoryErr error
	// IdleErr makes WaitForIdle fail.
	IdleErr error
}

// Device is a mock implementation of platform.Device and platform.ObjectFactory.
type Device struct {
	Config Config

	mu          sync.Mutex
	root        *Node
	windows     []*Window
	idleCalls   int
	rootCalls   int
	windowCalls int
	findCalls   int
}

// New creates a new mock device.
func New(cfg Config) *Device {
	if cfg.Version == "" {
		cfg.Version = "13"
	}
	return &Device{Config: cfg}
}

// SetRoot replaces the active window root.
func (d *Device) SetRoot(root *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
}

// AddWindow appends a window. A nil root simulates a window that closed
// during enumeration.
func (d *Device) AddWindow(name string, root *Node) *Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := &Window{name: name, root: root}
	d.windows = append(d.windows, w)
	return w
}

// Remove detaches n and its subtree; objects bound to them go stale.
func (d *Device) Remove(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n.markRemoved()
}

// IdleCalls returns how many times WaitForIdle ran.
func (d *Device) IdleCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleCalls
}

// RootCalls returns how many times RootInActiveWindow ran.
func (d *Device) RootCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rootCalls
}

// WindowCalls returns how many times Windows ran.
func (d *Device) WindowCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.windowCalls
}

// FindObjectCalls returns how many times FindObject ran.
func (d *Device) FindObjectCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findCalls
}

// WaitForIdle records the call.
func (d *Device) WaitForIdle(ctx context.Context) error {
	d.mu.Lock()
	d.idleCalls++
	d.mu.Unlock()
	if d.Config.IdleErr != nil {
		return d.Config.IdleErr
	}
	return ctx.Err()
}

// RootInActiveWindow returns the root, or nothing while NullRoots lasts.
func (d *Device) RootInActiveWindow(ctx context.Context) (platform.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rootCalls++
	if d.Config.NullRoots < 0 || d.rootCalls <= d.Config.NullRoots {
		return nil, nil
	}
	if d.root == nil || d.root.removed {
		return nil, nil
	}
	return d.root, nil
}

// Windows returns the configured windows.
func (d *Device) Windows(ctx context.Context) ([]platform.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windowCalls++
	out := make([]platform.Window, len(d.windows))
	for i, w := range d.windows {
		out[i] = w
	}
	return out, nil
}

// FindObject resolves a legacy selector against the active root.
func (d *Device) FindObject(ctx context.Context, sel *selector.UiSelector) (platform.Object, error) {
	d.mu.Lock()
	d.findCalls++
	root := d.root
	d.mu.Unlock()

	if root == nil {
		return nil, nil
	}
	matches, err := platform.MatchUiSelector(sel, []platform.Node{root})
	if err != nil {
		return nil, err
	}
	if sel.Instance >= len(matches) {
		return nil, nil
	}
	return &Object{dev: d, node: matches[sel.Instance].(*Node)}, nil
}

// Version returns the configured release.
func (d *Device) Version() string {
	return d.Config.Version
}

// NewObject binds node to this device.
func (d *Device) NewObject(dev platform.Device, sel selector.Selector, node platform.Node) (platform.Object, error) {
	if d.Config.FactoryErr != nil {
		return nil, d.Config.FactoryErr
	}
	n, ok := node.(*Node)
	if !ok {
		return nil, fmt.Errorf("mock: foreign node type %T", node)
	}
	return &Object{dev: d, node: n, sel: sel}, nil
}

// Node is an in-memory accessibility node.
type Node struct {
	Attrs   map[string]string
	Kids    []*Node
	removed bool
}

// NewNode builds a node from attributes and children.
func NewNode(attrs map[string]string, children ...*Node) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Attrs: attrs, Kids: children}
}

// Attribute implements platform.Node.
func (n *Node) Attribute(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// Children implements platform.Node. Removed children are skipped.
func (n *Node) Children() []platform.Node {
	out := make([]platform.Node, 0, len(n.Kids))
	for _, k := range n.Kids {
		if !k.removed {
			out = append(out, k)
		}
	}
	return out
}

func (n *Node) markRemoved() {
	n.removed = true
	for _, k := range n.Kids {
		k.markRemoved()
	}
}

// Window is an in-memory window.
type Window struct {
	name string
	root *Node
}

// Root implements platform.Window.
func (w *Window) Root() platform.Node {
	if w.root == nil {
		return nil
	}
	return w.root
}

// Close drops the window's root.
func (w *Window) Close() {
	w.root = nil
}

func (w *Window) String() string {
	return "Window[" + w.name + "]"
}

// Object is a live reference into the mock tree.
type Object struct {
	dev  *Device
	node *Node
	sel  selector.Selector
}

// Attribute implements platform.Object.
func (o *Object) Attribute(ctx context.Context, name string) (string, bool, error) {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if o.node.removed {
		return "", false, platform.ErrStaleObject
	}
	v, ok := o.node.Attrs[name]
	return v, ok, nil
}

// Node implements platform.NodeObject.
func (o *Object) Node(ctx context.Context) (platform.Node, error) {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if o.node.removed {
		return nil, platform.ErrStaleObject
	}
	return o.node, nil
}

// Selector returns the selector the object was bound with.
func (o *Object) Selector() selector.Selector {
	return o.sel
}

// WakeLock is a mock platform.WakeLock that counts calls.
type WakeLock struct {
	AcquireErr error

	mu       sync.Mutex
	held     bool
	acquires int
	releases int
}

// Acquire implements platform.WakeLock.
func (w *WakeLock) Acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acquires++
	if w.AcquireErr != nil {
		return w.AcquireErr
	}
	w.held = true
	return nil
}

// Release implements platform.WakeLock.
func (w *WakeLock) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releases++
	w.held = false
	return nil
}

// Held reports whether the lock is currently held.
func (w *WakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held
}

// Counts returns how many times Acquire and Release ran.
func (w *WakeLock) Counts() (acquires, releases int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acquires, w.releases
}
