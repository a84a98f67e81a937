package handler

import (
	"context"
	"errors"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/element"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
	"github.com/devicelab-dev/uia2-server/pkg/session"
)

// GetElementAttribute reads one named attribute of a cached element. An
// absent attribute is reported as an explicit null.
type GetElementAttribute struct {
	Session *session.Session
}

func (h *GetElementAttribute) Name() string { return "getElementAttribute" }

func (h *GetElementAttribute) Handle(ctx context.Context, req *Request) (interface{}, error) {
	el, err := lookup(h.Session, req)
	if err != nil {
		return nil, err
	}
	name, err := req.Param(ParamName)
	if err != nil {
		return nil, err
	}

	value, present, err := el.StringAttribute(ctx, name)
	if err != nil {
		return nil, vanished(el, err)
	}
	if !present {
		return nil, nil
	}
	return value, nil
}

// GetElementText reads the text of a cached element.
type GetElementText struct {
	Session *session.Session
}

func (h *GetElementText) Name() string { return "getElementText" }

func (h *GetElementText) Handle(ctx context.Context, req *Request) (interface{}, error) {
	el, err := lookup(h.Session, req)
	if err != nil {
		return nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return nil, vanished(el, err)
	}
	return text, nil
}

// vanished maps a read on a node that left the tree to NoSuchElement.
func vanished(el *element.Element, err error) error {
	if errors.Is(err, platform.ErrStaleObject) {
		logger.Debug("element found by %s is no longer in the tree", el.Selector().Describe())
		return core.ErrNoSuchElement.WithCause(err)
	}
	return err
}
