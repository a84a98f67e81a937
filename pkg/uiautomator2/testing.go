package uiautomator2

import "net/http"

// NewTestElement creates an Element for testing purposes.
// This should only be used in tests.
func NewTestElement(id string, client *Client) *Element {
	return &Element{
		id:     id,
		client: client,
	}
}

// SetSession sets the session ID for testing purposes.
// This should only be used in tests.
func (c *Client) SetSession(sessionID string) {
	c.sessionID = sessionID
}

// SetHTTPClient replaces the HTTP client, e.g. with an httptest server's.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.http = h
}
