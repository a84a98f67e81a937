package handler

import (
	"context"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/element"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
	"github.com/devicelab-dev/uia2-server/pkg/session"
)

// W3CElementKey is the W3C element reference key.
const W3CElementKey = "element-6066-11e4-a5c6-4c41cc8f9c8f"

// findRequest accepts both the JSON Wire and the W3C field names.
type findRequest struct {
	Strategy string `json:"strategy"`
	Selector string `json:"selector"`
	Using    string `json:"using"`
	Value    string `json:"value"`
	Context  string `json:"context"`
}

func (r *findRequest) selector() (selector.Selector, error) {
	strategy, value := r.Strategy, r.Selector
	if strategy == "" {
		strategy = r.Using
	}
	if value == "" {
		value = r.Value
	}
	if strategy == "" || value == "" {
		return nil, core.ErrInvalidArgument.WithMessage("strategy and selector are required")
	}
	return selector.FromStrategy(strategy, value)
}

// ElementRef builds the reference returned to clients for an element id.
func ElementRef(id string) map[string]string {
	return map[string]string{"ELEMENT": id, W3CElementKey: id}
}

// FindElement locates the first element matching a selector and caches it.
type FindElement struct {
	Session *session.Session
	Finder  Finder
}

func (h *FindElement) Name() string { return "findElement" }

func (h *FindElement) Handle(ctx context.Context, req *Request) (interface{}, error) {
	sel, scope, err := decodeFind(h.Session, req)
	if err != nil {
		return nil, err
	}

	var el *element.Element
	if scope != nil {
		el, err = h.Finder.FindOneWithin(ctx, sel, scope)
	} else {
		el, err = h.Finder.FindOne(ctx, sel)
	}
	if err != nil {
		return nil, err
	}
	return ElementRef(h.Session.Cache().Put(el)), nil
}

// FindElements locates every element matching a selector. No match is an
// empty list, not an error.
type FindElements struct {
	Session *session.Session
	Finder  Finder
}

func (h *FindElements) Name() string { return "findElements" }

func (h *FindElements) Handle(ctx context.Context, req *Request) (interface{}, error) {
	sel, scope, err := decodeFind(h.Session, req)
	if err != nil {
		return nil, err
	}

	var els []*element.Element
	if scope != nil {
		els, err = h.Finder.FindAllWithin(ctx, sel, scope)
	} else {
		els, err = h.Finder.FindAll(ctx, sel)
	}
	if err != nil {
		return nil, err
	}

	cache := h.Session.Cache()
	refs := make([]map[string]string, 0, len(els))
	for _, el := range els {
		refs = append(refs, ElementRef(cache.Put(el)))
	}
	return refs, nil
}

func decodeFind(sess *session.Session, req *Request) (selector.Selector, *element.Element, error) {
	if err := checkSession(sess, req); err != nil {
		return nil, nil, err
	}
	var body findRequest
	if err := req.Decode(&body); err != nil {
		return nil, nil, err
	}
	sel, err := body.selector()
	if err != nil {
		return nil, nil, err
	}
	if body.Context == "" {
		return sel, nil, nil
	}
	scope, ok := sess.Cache().Get(body.Context)
	if !ok {
		return nil, nil, core.ErrNoSuchElement.WithDetails(map[string]interface{}{"context": body.Context})
	}
	return sel, scope, nil
}

// lookup resolves the element id parameter through the session cache.
func lookup(sess *session.Session, req *Request) (*element.Element, error) {
	if err := checkSession(sess, req); err != nil {
		return nil, err
	}
	id, err := req.Param(ParamElementID)
	if err != nil {
		return nil, err
	}
	el, ok := sess.Cache().Get(id)
	if !ok {
		return nil, core.ErrNoSuchElement.WithDetails(map[string]interface{}{"id": id})
	}
	return el, nil
}
