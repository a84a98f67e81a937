package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

var errNotIdle = errors.New("hierarchy still changing")

// Dump returns the raw hierarchy XML of the current screen.
func (d *AndroidDevice) Dump(ctx context.Context) (string, error) {
	return d.adb(ctx, "exec-out", "uiautomator", "dump", "/dev/tty")
}

// Hierarchy dumps and parses the current screen.
func (d *AndroidDevice) Hierarchy(ctx context.Context) (*Hierarchy, error) {
	raw, err := d.Dump(ctx)
	if err != nil {
		return nil, err
	}
	return ParseHierarchy(raw)
}

// WaitForIdle polls the hierarchy until two consecutive dumps are identical
// or the idle timeout passes. A timeout is logged, not returned: a screen
// that never settles can still be searched. The timeout bounds wall time,
// including slow dumps.
func (d *AndroidDevice) WaitForIdle(ctx context.Context) error {
	idleCtx, cancel := context.WithTimeout(ctx, d.idleTimeout)
	defer cancel()

	var last string
	polls := 0

	op := func() error {
		if err := idleCtx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		polls++
		raw, err := d.Dump(idleCtx)
		if err != nil {
			if ctxErr := idleCtx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(err)
		}
		if polls > 1 && raw == last {
			return nil
		}
		last = raw
		return errNotIdle
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(d.idleInterval), idleCtx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, errNotIdle), errors.Is(err, context.DeadlineExceeded):
		logger.Debug("UI did not go idle within %v (%d dumps)", d.idleTimeout, polls)
		return nil
	default:
		return fmt.Errorf("wait for idle: %w", err)
	}
}

// RootInActiveWindow returns the first top-level node of a fresh dump, or
// nil when the dump has none.
func (d *AndroidDevice) RootInActiveWindow(ctx context.Context) (platform.Node, error) {
	h, err := d.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	if len(h.Roots) == 0 {
		return nil, nil
	}
	return h.Roots[0], nil
}

// Windows treats every top-level node of a fresh dump as one window.
func (d *AndroidDevice) Windows(ctx context.Context) ([]platform.Window, error) {
	h, err := d.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]platform.Window, len(h.Roots))
	for i, r := range h.Roots {
		out[i] = &window{index: i, root: r}
	}
	return out, nil
}

// FindObject runs a legacy selector against a fresh dump.
func (d *AndroidDevice) FindObject(ctx context.Context, sel *selector.UiSelector) (platform.Object, error) {
	matches, err := d.matchLegacy(ctx, sel)
	if err != nil {
		return nil, err
	}
	if sel.Instance >= len(matches) {
		return nil, nil
	}
	return d.bind(matches[sel.Instance].(*Node)), nil
}

// FindObjects returns every match of sel from sel.Instance on, all from one
// dump.
func (d *AndroidDevice) FindObjects(ctx context.Context, sel *selector.UiSelector) ([]platform.Object, error) {
	matches, err := d.matchLegacy(ctx, sel)
	if err != nil {
		return nil, err
	}
	out := []platform.Object{}
	for i := sel.Instance; i < len(matches); i++ {
		out = append(out, d.bind(matches[i].(*Node)))
	}
	return out, nil
}

func (d *AndroidDevice) matchLegacy(ctx context.Context, sel *selector.UiSelector) ([]platform.Node, error) {
	h, err := d.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	roots := make([]platform.Node, len(h.Roots))
	for i, r := range h.Roots {
		roots[i] = r
	}
	return platform.MatchUiSelector(sel, roots)
}

// NewObject binds a node from one of this device's dumps.
func (d *AndroidDevice) NewObject(dev platform.Device, sel selector.Selector, node platform.Node) (platform.Object, error) {
	n, ok := node.(*Node)
	if !ok {
		return nil, fmt.Errorf("node of type %T does not come from an adb dump", node)
	}
	return d.bind(n), nil
}

func (d *AndroidDevice) bind(n *Node) *Object {
	class, _ := n.Attribute(platform.AttrClass)
	return &Object{dev: d, path: n.Path(), class: class}
}

type window struct {
	index int
	root  *Node
}

func (w *window) Root() platform.Node {
	if w.root == nil {
		return nil
	}
	return w.root
}

func (w *window) String() string {
	pkg, _ := w.root.Attribute(platform.AttrPackage)
	return "Window[" + strconv.Itoa(w.index) + " " + pkg + "]"
}

// Object addresses an element by its child-index path. Every read takes a
// fresh dump; the object is stale once the path no longer leads to a node of
// the same class.
type Object struct {
	dev   *AndroidDevice
	path  []int
	class string
}

// Node implements platform.NodeObject.
func (o *Object) Node(ctx context.Context) (platform.Node, error) {
	n, err := o.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Attribute implements platform.Object.
func (o *Object) Attribute(ctx context.Context, name string) (string, bool, error) {
	n, err := o.resolve(ctx)
	if err != nil {
		return "", false, err
	}
	if v, ok := n.Attribute(name); ok {
		return v, true, nil
	}
	if name == platform.AttrDisplayed {
		raw, _ := n.Attribute(platform.AttrBounds)
		if b, ok := ParseBounds(raw); ok {
			return strconv.FormatBool(b.Width > 0 && b.Height > 0), true, nil
		}
	}
	return "", false, nil
}

func (o *Object) resolve(ctx context.Context) (*Node, error) {
	h, err := o.dev.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	n := h.Lookup(o.path)
	if n == nil {
		return nil, platform.ErrStaleObject
	}
	if class, _ := n.Attribute(platform.AttrClass); class != o.class {
		return nil, platform.ErrStaleObject
	}
	return n, nil
}
