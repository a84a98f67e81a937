// Package uiautomator2 provides an HTTP client for the automation server.
package uiautomator2

import "fmt"

// Response is the envelope every command answers with.
type Response struct {
	SessionID string      `json:"sessionId"`
	Status    int         `json:"status"`
	Value     interface{} `json:"value"`
}

// Status codes carried in Response.Status.
const (
	StatusSuccess         = 0
	StatusNoSuchDriver    = 6
	StatusNoSuchElement   = 7
	StatusUnknownCommand  = 9
	StatusUnknownError    = 13
	StatusInvalidSelector = 32
	StatusInvalidArgument = 61
)

// StatusError is a command failure reported by the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// SessionRequest for creating a session.
type SessionRequest struct {
	Capabilities map[string]interface{} `json:"capabilities"`
}

// ElementModel represents an element reference.
type ElementModel struct {
	ELEMENT string `json:"ELEMENT"`
	W3C     string `json:"element-6066-11e4-a5c6-4c41cc8f9c8f"`
}

// ID returns whichever reference key the server filled in.
func (m ElementModel) ID() string {
	if m.ELEMENT != "" {
		return m.ELEMENT
	}
	return m.W3C
}

// FindElementRequest for finding elements.
type FindElementRequest struct {
	Strategy string `json:"strategy"`
	Selector string `json:"selector"`
	Context  string `json:"context,omitempty"`
}

// ServerStatus is the value of the status command.
type ServerStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   struct {
		Version         string `json:"version"`
		PlatformVersion string `json:"platformVersion"`
		MultiWindow     bool   `json:"multiWindow"`
	} `json:"build"`
}

// Locator strategies.
const (
	StrategyID              = "id"
	StrategyAccessibilityID = "accessibility id"
	StrategyXPath           = "xpath"
	StrategyClassName       = "class name"
	StrategyText            = "text"
	StrategyUIAutomator     = "-android uiautomator"
)
