package core

import "net/http"

// WDStatus is the JSON Wire status code carried on every response.
type WDStatus int

const (
	StatusSuccess               WDStatus = 0
	StatusNoSuchDriver          WDStatus = 6
	StatusNoSuchElement         WDStatus = 7
	StatusUnknownCommand        WDStatus = 9
	StatusStaleElementReference WDStatus = 10
	StatusUnknownError          WDStatus = 13
	StatusInvalidSelector       WDStatus = 32
	StatusSessionNotCreated     WDStatus = 33
	StatusInvalidArgument       WDStatus = 61
)

// String returns the W3C error name of the status.
func (s WDStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoSuchDriver:
		return "invalid session id"
	case StatusNoSuchElement:
		return "no such element"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusStaleElementReference:
		return "stale element reference"
	case StatusUnknownError:
		return "unknown error"
	case StatusInvalidSelector:
		return "invalid selector"
	case StatusSessionNotCreated:
		return "session not created"
	case StatusInvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// IsSuccess returns true for StatusSuccess only.
func (s WDStatus) IsSuccess() bool {
	return s == StatusSuccess
}

// HTTPStatus returns the HTTP status code the server writes for s.
func (s WDStatus) HTTPStatus() int {
	switch s {
	case StatusSuccess:
		return http.StatusOK
	case StatusNoSuchDriver, StatusNoSuchElement, StatusUnknownCommand, StatusStaleElementReference:
		return http.StatusNotFound
	case StatusInvalidSelector, StatusInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCategory classifies failures by how the server reacts to them.
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryClient                         // Malformed parameters, unsupported selector
	ErrCategoryNotFound                       // Cache miss or vanished node; an ordinary outcome
	ErrCategoryTransient                      // Platform briefly unavailable (null root)
	ErrCategoryPlatform                       // Platform-side defect (handle construction)
	ErrCategoryLifecycle                      // Invalid port, listener bind failure
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryClient:
		return "client"
	case ErrCategoryNotFound:
		return "not_found"
	case ErrCategoryTransient:
		return "transient"
	case ErrCategoryPlatform:
		return "platform"
	case ErrCategoryLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}
