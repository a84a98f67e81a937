package uiautomator2

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/uia2-server/pkg/logger"
)

// ErrNoSession is returned by session commands before CreateSession.
var ErrNoSession = errors.New("no active session")

// Client communicates with the automation server.
type Client struct {
	http      *http.Client
	baseURL   string
	sessionID string
}

// NewClient creates a client for a server at baseURL, e.g.
// "http://127.0.0.1:6790" or "http://127.0.0.1:6790/wd/hub".
func NewClient(baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientTCP creates a client for a server on localhost.
func NewClientTCP(port int) *Client {
	return NewClient(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// request sends one command and decodes the envelope. A non-success status
// comes back as *StatusError.
func (c *Client) request(method, path string, body interface{}) (*Response, error) {
	start := time.Now()

	var reqBody io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("%s %s [%v] ERROR: %v", method, path, elapsed, err)
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("%s %s [%v] %d body=%s", method, path, elapsed, resp.StatusCode, bodyStr)

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if out.Status != StatusSuccess {
		return nil, &StatusError{Status: out.Status, Message: errorMessage(out.Value)}
	}
	return &out, nil
}

// errorMessage accepts both a bare string and a W3C {error, message} value.
func errorMessage(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}:
		msg, _ := val["message"].(string)
		if kind, _ := val["error"].(string); kind != "" {
			return kind + ": " + msg
		}
		return msg
	default:
		return fmt.Sprint(v)
	}
}

// decode re-marshals an envelope value into out.
func decode(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// sessionPath returns path with session ID prefix.
func (c *Client) sessionPath(path string) string {
	return fmt.Sprintf("/session/%s%s", c.sessionID, path)
}

// Status reports whether the server is ready.
func (c *Client) Status() (*ServerStatus, error) {
	resp, err := c.request("GET", "/status", nil)
	if err != nil {
		return nil, err
	}
	var st ServerStatus
	if err := decode(resp.Value, &st); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &st, nil
}

// CreateSession attaches to the server's session.
func (c *Client) CreateSession(caps map[string]interface{}) error {
	resp, err := c.request("POST", "/session", SessionRequest{Capabilities: caps})
	if err != nil {
		return err
	}

	id := resp.SessionID
	if id == "" {
		var value struct {
			SessionID string `json:"sessionId"`
		}
		if decode(resp.Value, &value) == nil {
			id = value.SessionID
		}
	}
	if id == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.sessionID = id
	return nil
}

// GetSession returns the current session capabilities.
func (c *Client) GetSession() (map[string]interface{}, error) {
	if c.sessionID == "" {
		return nil, ErrNoSession
	}
	resp, err := c.request("GET", c.sessionPath(""), nil)
	if err != nil {
		return nil, err
	}
	caps, _ := resp.Value.(map[string]interface{})
	return caps, nil
}

// DeleteSession ends the current session.
func (c *Client) DeleteSession() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.request("DELETE", c.sessionPath(""), nil)
	c.sessionID = ""
	return err
}

// Close ends the session.
func (c *Client) Close() error {
	return c.DeleteSession()
}
