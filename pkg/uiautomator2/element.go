package uiautomator2

import (
	"errors"
	"fmt"
	"net/url"
)

// Element represents a UI element on the device.
type Element struct {
	id     string
	client *Client
}

// ID returns the element ID.
func (e *Element) ID() string {
	return e.id
}

// IsNotFound reports whether err is a "no such element" failure.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == StatusNoSuchElement
}

// FindElement finds a single element.
func (c *Client) FindElement(strategy, selector string) (*Element, error) {
	return c.FindElementWithContext(strategy, selector, "")
}

// FindElementWithContext finds an element within a parent element.
func (c *Client) FindElementWithContext(strategy, selector, contextID string) (*Element, error) {
	if c.sessionID == "" {
		return nil, ErrNoSession
	}
	req := FindElementRequest{
		Strategy: strategy,
		Selector: selector,
		Context:  contextID,
	}
	resp, err := c.request("POST", c.sessionPath("/element"), req)
	if err != nil {
		return nil, err
	}

	var ref ElementModel
	if err := decode(resp.Value, &ref); err != nil {
		return nil, fmt.Errorf("parse element response: %w", err)
	}
	if ref.ID() == "" {
		return nil, fmt.Errorf("element not found: %s=%s", strategy, selector)
	}
	return &Element{id: ref.ID(), client: c}, nil
}

// FindElements finds multiple elements. No match is an empty slice.
func (c *Client) FindElements(strategy, selector string) ([]*Element, error) {
	return c.FindElementsWithContext(strategy, selector, "")
}

// FindElementsWithContext finds multiple elements within a parent element.
func (c *Client) FindElementsWithContext(strategy, selector, contextID string) ([]*Element, error) {
	if c.sessionID == "" {
		return nil, ErrNoSession
	}
	req := FindElementRequest{
		Strategy: strategy,
		Selector: selector,
		Context:  contextID,
	}
	resp, err := c.request("POST", c.sessionPath("/elements"), req)
	if err != nil {
		return nil, err
	}

	var refs []ElementModel
	if err := decode(resp.Value, &refs); err != nil {
		return nil, fmt.Errorf("parse elements response: %w", err)
	}
	elements := make([]*Element, len(refs))
	for i, ref := range refs {
		elements[i] = &Element{id: ref.ID(), client: c}
	}
	return elements, nil
}

// Text returns the element's text content.
func (e *Element) Text() (string, error) {
	resp, err := e.client.request("GET", e.client.sessionPath("/element/"+e.id+"/text"), nil)
	if err != nil {
		return "", err
	}
	text, _ := resp.Value.(string)
	return text, nil
}

// Attribute returns an element attribute. present is false when the server
// reported the attribute as null.
func (e *Element) Attribute(name string) (value string, present bool, err error) {
	path := e.client.sessionPath("/element/" + e.id + "/attribute/" + url.PathEscape(name))
	resp, err := e.client.request("GET", path, nil)
	if err != nil {
		return "", false, err
	}
	if resp.Value == nil {
		return "", false, nil
	}
	switch v := resp.Value.(type) {
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

// IsEnabled checks if the element is enabled.
func (e *Element) IsEnabled() (bool, error) {
	attr, _, err := e.Attribute("enabled")
	if err != nil {
		return false, err
	}
	return attr == "true", nil
}

// IsSelected checks if the element is selected.
func (e *Element) IsSelected() (bool, error) {
	attr, _, err := e.Attribute("selected")
	if err != nil {
		return false, err
	}
	return attr == "true", nil
}
