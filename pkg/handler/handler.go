// Package handler implements the automation commands. Each handler decodes
// its parameters, resolves elements through the session cache or the tree
// resolver, and returns a value or a typed error; Safe turns that outcome
// into a status and payload for the HTTP layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/element"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
	"github.com/devicelab-dev/uia2-server/pkg/selector"
	"github.com/devicelab-dev/uia2-server/pkg/session"
)

// Route parameter names.
const (
	ParamSessionID = "sessionId"
	ParamElementID = "id"
	ParamName      = "name"
)

// Request is one decoded inbound command.
type Request struct {
	params map[string]string
	body   []byte
}

// NewRequest creates a request from route parameters and a raw JSON body.
func NewRequest(params map[string]string, body []byte) *Request {
	if params == nil {
		params = map[string]string{}
	}
	return &Request{params: params, body: body}
}

// Param returns a required route parameter.
func (r *Request) Param(name string) (string, error) {
	v := r.params[name]
	if v == "" {
		return "", core.ErrInvalidArgument.WithMessagef("missing required parameter %q", name)
	}
	return v, nil
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Request) Decode(v interface{}) error {
	if len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return core.ErrInvalidArgument.WithMessage("malformed request body").WithCause(err)
	}
	return nil
}

// Response is the outcome of one command.
type Response struct {
	SessionID string        `json:"sessionId"`
	Status    core.WDStatus `json:"status"`
	Value     interface{}   `json:"value"`
}

// Handler is one automation verb.
type Handler interface {
	Name() string
	Handle(ctx context.Context, req *Request) (interface{}, error)
}

// Finder resolves selectors to element handles.
type Finder interface {
	FindOne(ctx context.Context, sel selector.Selector) (*element.Element, error)
	FindAll(ctx context.Context, sel selector.Selector) ([]*element.Element, error)
	FindOneWithin(ctx context.Context, sel selector.Selector, scope *element.Element) (*element.Element, error)
	FindAllWithin(ctx context.Context, sel selector.Selector, scope *element.Element) ([]*element.Element, error)
}

// Safe runs h and maps its outcome to a Response. Panics become UnknownError
// responses; nothing escapes to the caller.
func Safe(ctx context.Context, sess *session.Session, h Handler, req *Request) (resp *Response) {
	sessionID := req.params[ParamSessionID]
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s: panic: %v", h.Name(), r)
			resp = &Response{
				SessionID: echoID(sessionID, sess),
				Status:    core.StatusUnknownError,
				Value:     fmt.Sprintf("%v", r),
			}
		}
	}()

	value, err := h.Handle(ctx, req)
	if err != nil {
		logFailure(h.Name(), err)
		return &Response{
			SessionID: echoID(sessionID, sess),
			Status:    core.StatusFor(err),
			Value:     errorValue(err),
		}
	}
	return &Response{
		SessionID: echoID(sessionID, sess),
		Status:    core.StatusSuccess,
		Value:     value,
	}
}

func echoID(requested string, sess *session.Session) string {
	if requested != "" {
		return requested
	}
	return sess.ID()
}

// errorValue is the payload reported for err: the taxonomy message for
// known errors, the full text otherwise.
func errorValue(err error) string {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Message
	}
	return err.Error()
}

func logFailure(name string, err error) {
	entry := logger.With(map[string]interface{}{"command": name})
	switch core.CategoryOf(err) {
	case core.ErrCategoryNotFound:
		entry.Debug(err)
	case core.ErrCategoryClient:
		entry.Warn(err)
	default:
		entry.Error(err)
	}
}

// checkSession validates the session id carried by req.
func checkSession(sess *session.Session, req *Request) error {
	id, err := req.Param(ParamSessionID)
	if err != nil {
		return err
	}
	return sess.Check(id)
}
