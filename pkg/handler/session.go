package handler

import (
	"context"

	"github.com/devicelab-dev/uia2-server/pkg/session"
)

// ReadyMessage is reported by the status command.
const ReadyMessage = "UiAutomator2 Server is ready to accept commands"

// Status reports readiness and build details. It needs no session.
type Status struct {
	Version     string
	Platform    string
	MultiWindow bool
}

func (h *Status) Name() string { return "status" }

func (h *Status) Handle(ctx context.Context, req *Request) (interface{}, error) {
	return map[string]interface{}{
		"ready":   true,
		"message": ReadyMessage,
		"build": map[string]interface{}{
			"version":         h.Version,
			"platformVersion": h.Platform,
			"multiWindow":     h.MultiWindow,
		},
	}, nil
}

type sessionRequest struct {
	Capabilities        map[string]interface{} `json:"capabilities"`
	DesiredCapabilities map[string]interface{} `json:"desiredCapabilities"`
}

// NewSession attaches the client to the server's session.
type NewSession struct {
	Session *session.Session
}

func (h *NewSession) Name() string { return "newSession" }

func (h *NewSession) Handle(ctx context.Context, req *Request) (interface{}, error) {
	var body sessionRequest
	if err := req.Decode(&body); err != nil {
		return nil, err
	}
	caps := body.Capabilities
	if caps == nil {
		caps = body.DesiredCapabilities
	}
	if caps == nil {
		caps = map[string]interface{}{}
	}
	id := h.Session.Open(caps)
	return map[string]interface{}{
		"sessionId":    id,
		"capabilities": caps,
	}, nil
}

// GetSession returns the capabilities of the current session.
type GetSession struct {
	Session *session.Session
}

func (h *GetSession) Name() string { return "getSession" }

func (h *GetSession) Handle(ctx context.Context, req *Request) (interface{}, error) {
	if err := checkSession(h.Session, req); err != nil {
		return nil, err
	}
	return h.Session.Capabilities(), nil
}

// DeleteSession ends the current session. Cached element ids stop resolving
// and a new session id is issued.
type DeleteSession struct {
	Session *session.Session
}

func (h *DeleteSession) Name() string { return "deleteSession" }

func (h *DeleteSession) Handle(ctx context.Context, req *Request) (interface{}, error) {
	if err := checkSession(h.Session, req); err != nil {
		return nil, err
	}
	h.Session.Reset()
	return nil, nil
}
