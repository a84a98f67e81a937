// Package platform defines the accessibility capability boundary. The server
// core only calls into these interfaces; adapters in pkg/device (adb) and
// pkg/platform/mock (tests) implement them.
//
// Every call may fail or return nothing: roots go missing right after a UI
// transition, windows close mid-enumeration, objects go stale between
// requests.
package platform

import (
	"context"
	"errors"

	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// ErrStaleObject is returned when an object's node no longer exists.
var ErrStaleObject = errors.New("object no longer exists in the accessibility tree")

// Node attribute names, as they appear in a hierarchy dump.
const (
	AttrText          = "text"
	AttrResourceID    = "resource-id"
	AttrClass         = "class"
	AttrPackage       = "package"
	AttrContentDesc   = "content-desc"
	AttrCheckable     = "checkable"
	AttrChecked       = "checked"
	AttrClickable     = "clickable"
	AttrEnabled       = "enabled"
	AttrFocusable     = "focusable"
	AttrFocused       = "focused"
	AttrLongClickable = "long-clickable"
	AttrScrollable    = "scrollable"
	AttrSelected      = "selected"
	AttrBounds        = "bounds"
	AttrDisplayed     = "displayed"
	AttrIndex         = "index"
)

// Node is one node of an accessibility tree snapshot.
type Node interface {
	// Attribute returns the attribute value and whether the node has it.
	Attribute(name string) (string, bool)
	Children() []Node
}

// Window is one on-screen window.
type Window interface {
	// Root returns nil once the window has closed.
	Root() Node
	String() string
}

// Device is the accessibility-tree capability of the host.
type Device interface {
	// WaitForIdle blocks until the UI has settled.
	WaitForIdle(ctx context.Context) error
	// RootInActiveWindow returns nil without error when the platform has no
	// root to give, which is a known transient condition.
	RootInActiveWindow(ctx context.Context) (Node, error)
	// Windows enumerates the visible windows.
	Windows(ctx context.Context) ([]Window, error)
	// FindObject runs the platform's own legacy selector search and returns
	// nil without error when nothing matches.
	FindObject(ctx context.Context, sel *selector.UiSelector) (Object, error)
	// Version is the platform release, e.g. "13" or "4.4.2".
	Version() string
}

// ObjectLister is implemented by devices that can return every instance of
// a legacy selector from one snapshot, starting at sel.Instance.
type ObjectLister interface {
	FindObjects(ctx context.Context, sel *selector.UiSelector) ([]Object, error)
}

// Object is a live reference to one element. It stays usable only until the
// tree mutates.
type Object interface {
	// Attribute reads a named attribute. It returns ErrStaleObject when the
	// element is gone.
	Attribute(ctx context.Context, name string) (value string, present bool, err error)
}

// NodeObject is implemented by objects that can expose their current node,
// which lets a search be scoped to the object's subtree.
type NodeObject interface {
	Object
	Node(ctx context.Context) (Node, error)
}

// ObjectFactory binds a matched node to the device and the selector that
// found it.
type ObjectFactory interface {
	NewObject(dev Device, sel selector.Selector, node Node) (Object, error)
}

// WakeLock keeps the host awake while held.
type WakeLock interface {
	Acquire() error
	Release() error
}

// NopWakeLock is a WakeLock for hosts without one.
type NopWakeLock struct{}

// Acquire does nothing.
func (NopWakeLock) Acquire() error { return nil }

// Release does nothing.
func (NopWakeLock) Release() error { return nil }
