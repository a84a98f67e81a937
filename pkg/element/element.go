// Package element holds element handles and the cache that maps opaque ids to
// them between stateless requests.
package element

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
)

// attributeAliases maps client-facing attribute names to node attribute names.
var attributeAliases = map[string]string{
	"resourceId":         platform.AttrResourceID,
	"className":          platform.AttrClass,
	"contentDescription": platform.AttrContentDesc,
	"content-desc":       platform.AttrContentDesc,
	"name":               platform.AttrContentDesc,
	"packageName":        platform.AttrPackage,
	"longClickable":      platform.AttrLongClickable,
}

// Element is a handle on a live UI element, tagged with the selector that
// produced it. It stays valid only until the tree mutates; reads on a vanished
// element fail with platform.ErrStaleObject.
type Element struct {
	obj platform.Object
	sel selector.Selector
}

// New wraps a platform object.
func New(obj platform.Object, sel selector.Selector) *Element {
	return &Element{obj: obj, sel: sel}
}

// Selector returns the selector that found this element.
func (e *Element) Selector() selector.Selector {
	return e.sel
}

// StringAttribute reads an attribute by its client-facing name. present is
// false when the element has no such attribute.
func (e *Element) StringAttribute(ctx context.Context, name string) (value string, present bool, err error) {
	attr := name
	if alias, ok := attributeAliases[name]; ok {
		attr = alias
	}
	value, present, err = e.obj.Attribute(ctx, attr)
	if err != nil {
		return "", false, fmt.Errorf("get attribute %q: %w", name, err)
	}
	return value, present, nil
}

// Text returns the element text, empty when absent.
func (e *Element) Text(ctx context.Context) (string, error) {
	v, _, err := e.StringAttribute(ctx, platform.AttrText)
	return v, err
}

// Node returns the element's current node when the platform object exposes
// one. ok is false for objects that cannot.
func (e *Element) Node(ctx context.Context) (node platform.Node, ok bool, err error) {
	no, ok := e.obj.(platform.NodeObject)
	if !ok {
		return nil, false, nil
	}
	node, err = no.Node(ctx)
	if err != nil {
		return nil, true, err
	}
	return node, true, nil
}
