// Package resolver locates elements in the live accessibility tree. It owns
// the window-root acquisition policy: idle wait, multi-window enumeration,
// and the bounded retry for a missing active-window root.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver"
	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/element"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// Multi-window enumeration needs platform release 5.0 (API 21) or later.
var multiWindowConstraint = mustConstraint(">= 5.0")

// maxLegacyInstances bounds FindAll over a legacy selector.
const maxLegacyInstances = 500

var errNullRoot = errors.New("null root node returned by the platform")

// Options configures root acquisition.
type Options struct {
	MultiWindow  bool
	RootAttempts int           // Total attempts, default 5
	RootInterval time.Duration // Wait between attempts, default 1s
}

// Resolver finds elements for selectors. It holds no tree state: roots are
// fetched again for every call.
type Resolver struct {
	dev     platform.Device
	factory platform.ObjectFactory
	opts    Options

	multiWindowSupported bool
}

// New creates a Resolver over dev. factory binds matched nodes to handles.
func New(dev platform.Device, factory platform.ObjectFactory, opts Options) *Resolver {
	if opts.RootAttempts <= 0 {
		opts.RootAttempts = 5
	}
	if opts.RootInterval <= 0 {
		opts.RootInterval = time.Second
	}
	return &Resolver{
		dev:                  dev,
		factory:              factory,
		opts:                 opts,
		multiWindowSupported: supportsMultiWindow(dev.Version()),
	}
}

func supportsMultiWindow(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		logger.Debug("cannot parse platform version %q, multi-window disabled: %v", version, err)
		return false
	}
	return multiWindowConstraint.Check(v)
}

// MultiWindow reports whether roots come from every visible window.
func (r *Resolver) MultiWindow() bool {
	return r.opts.MultiWindow && r.multiWindowSupported
}

// FindOne returns the first element matching sel. A selector that matches
// nothing yields core.ErrNoSuchElement.
func (r *Resolver) FindOne(ctx context.Context, sel selector.Selector) (*element.Element, error) {
	switch s := sel.(type) {
	case *selector.By:
		m, err := newByMatcher(s)
		if err != nil {
			return nil, err
		}
		roots, err := r.WindowRoots(ctx)
		if err != nil {
			return nil, err
		}
		node := m.findMatch(roots)
		if node == nil {
			return nil, notFound(sel)
		}
		return r.bind(s, node)

	case *selector.UiSelector:
		obj, err := r.dev.FindObject(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("find object %s: %w", s.Describe(), err)
		}
		if obj == nil {
			return nil, notFound(sel)
		}
		return element.New(obj, s), nil

	default:
		return nil, unsupported(sel)
	}
}

// FindAll returns every element matching sel, possibly none.
func (r *Resolver) FindAll(ctx context.Context, sel selector.Selector) ([]*element.Element, error) {
	switch s := sel.(type) {
	case *selector.By:
		m, err := newByMatcher(s)
		if err != nil {
			return nil, err
		}
		roots, err := r.WindowRoots(ctx)
		if err != nil {
			return nil, err
		}
		return r.bindAll(s, m.findMatches(roots))

	case *selector.UiSelector:
		return r.findAllLegacy(ctx, s)

	default:
		return nil, unsupported(sel)
	}
}

// FindOneWithin searches the subtree of scope. Only by-criteria selectors
// can be scoped.
func (r *Resolver) FindOneWithin(ctx context.Context, sel selector.Selector, scope *element.Element) (*element.Element, error) {
	by, root, err := r.scopeRoot(ctx, sel, scope)
	if err != nil {
		return nil, err
	}
	m, err := newByMatcher(by)
	if err != nil {
		return nil, err
	}
	node := m.findMatch([]platform.Node{root})
	if node == nil {
		return nil, notFound(sel)
	}
	return r.bind(by, node)
}

// FindAllWithin is FindAll restricted to the subtree of scope.
func (r *Resolver) FindAllWithin(ctx context.Context, sel selector.Selector, scope *element.Element) ([]*element.Element, error) {
	by, root, err := r.scopeRoot(ctx, sel, scope)
	if err != nil {
		return nil, err
	}
	m, err := newByMatcher(by)
	if err != nil {
		return nil, err
	}
	return r.bindAll(by, m.findMatches([]platform.Node{root}))
}

func (r *Resolver) scopeRoot(ctx context.Context, sel selector.Selector, scope *element.Element) (*selector.By, platform.Node, error) {
	by, ok := sel.(*selector.By)
	if !ok {
		if _, legacy := sel.(*selector.UiSelector); legacy {
			return nil, nil, core.ErrInvalidSelector.WithMessage("scoped search requires a by-criteria selector")
		}
		return nil, nil, unsupported(sel)
	}
	root, supported, err := scope.Node(ctx)
	if err != nil {
		if errors.Is(err, platform.ErrStaleObject) {
			return nil, nil, core.ErrNoSuchElement.WithMessage("context element no longer exists").WithCause(err)
		}
		return nil, nil, err
	}
	if !supported {
		return nil, nil, core.ErrInvalidArgument.WithMessage("context element does not support scoped search")
	}
	return by, root, nil
}

// findAllLegacy collects every instance of a legacy selector. Devices that
// list objects do it from one snapshot; otherwise instances are walked
// through the single-object search until one comes back empty, one device
// round trip each.
func (r *Resolver) findAllLegacy(ctx context.Context, s *selector.UiSelector) ([]*element.Element, error) {
	if lister, ok := r.dev.(platform.ObjectLister); ok {
		objs, err := lister.FindObjects(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("find objects %s: %w", s.Describe(), err)
		}
		if len(objs) > maxLegacyInstances {
			objs = objs[:maxLegacyInstances]
		}
		out := make([]*element.Element, 0, len(objs))
		for i, obj := range objs {
			inst := *s
			inst.Instance = s.Instance + i
			out = append(out, element.New(obj, &inst))
		}
		return out, nil
	}

	out := []*element.Element{}
	for i := s.Instance; i < s.Instance+maxLegacyInstances; i++ {
		inst := *s
		inst.Instance = i
		obj, err := r.dev.FindObject(ctx, &inst)
		if err != nil {
			return nil, fmt.Errorf("find object %s: %w", inst.Describe(), err)
		}
		if obj == nil {
			break
		}
		out = append(out, element.New(obj, &inst))
	}
	return out, nil
}

func (r *Resolver) bind(by *selector.By, node platform.Node) (*element.Element, error) {
	obj, err := r.factory.NewObject(r.dev, by, node)
	if err != nil {
		logger.Error("error while creating element handle for %s: %v", by.Describe(), err)
		return nil, core.ErrHandleConstruction.WithCause(err)
	}
	return element.New(obj, by), nil
}

func (r *Resolver) bindAll(by *selector.By, nodes []platform.Node) ([]*element.Element, error) {
	out := make([]*element.Element, 0, len(nodes))
	for _, n := range nodes {
		e, err := r.bind(by, n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// WindowRoots waits for the UI to go idle and collects the roots to search:
// every visible window in multi-window mode, the active window otherwise.
func (r *Resolver) WindowRoots(ctx context.Context) ([]platform.Node, error) {
	if err := r.dev.WaitForIdle(ctx); err != nil {
		return nil, fmt.Errorf("wait for idle: %w", err)
	}

	if r.MultiWindow() {
		windows, err := r.dev.Windows(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate windows: %w", err)
		}
		roots := make([]platform.Node, 0, len(windows))
		for _, w := range windows {
			root := w.Root()
			if root == nil {
				logger.Debug("Skipping null root node for window: %s", w)
				continue
			}
			roots = append(roots, root)
		}
		return roots, nil
	}

	root, err := r.activeRoot(ctx)
	if err != nil {
		return nil, err
	}
	return []platform.Node{root}, nil
}

// activeRoot fetches the active window root, retrying a missing root with a
// fixed interval and a fresh idle wait before each retry.
func (r *Resolver) activeRoot(ctx context.Context) (platform.Node, error) {
	var root platform.Node
	attempt := 0

	op := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if attempt > 1 {
			if err := r.dev.WaitForIdle(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("wait for idle: %w", err))
			}
		}
		n, err := r.dev.RootInActiveWindow(ctx)
		if err != nil {
			return err
		}
		if n == nil {
			return errNullRoot
		}
		root = n
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("root in active window unavailable (%v), retrying in %v: attempt %d of %d",
			err, wait, attempt, r.opts.RootAttempts)
	}

	// WithMaxRetries treats zero as unlimited.
	var b backoff.BackOff = &backoff.StopBackOff{}
	if r.opts.RootAttempts > 1 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.RootInterval), uint64(r.opts.RootAttempts-1))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, errNullRoot) {
			return nil, core.ErrRootUnavailable.
				WithDetails(map[string]interface{}{"attempts": attempt}).
				WithCause(err)
		}
		return nil, err
	}
	return root, nil
}

func notFound(sel selector.Selector) error {
	return core.ErrNoSuchElement.WithDetails(map[string]interface{}{"selector": sel.Describe()})
}

func unsupported(sel selector.Selector) error {
	return core.ErrInvalidSelector.WithMessagef("Selector of type %T not supported", sel)
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
