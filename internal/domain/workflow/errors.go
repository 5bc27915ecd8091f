package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow rejection. The string values are part of the API.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidAction  Kind = "invalid_action"
	KindForbidden      Kind = "forbidden"
	KindInvalidRequest Kind = "invalid_request"
	KindConflict       Kind = "conflict"
)

// Error is a deterministic business rejection returned by the engine.
type Error struct {
	Kind    Kind
	Message string
	Status  Status
	Action  Action
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches sentinel errors by kind so callers can use errors.Is(err, ErrConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidAction  = &Error{Kind: KindInvalidAction}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrConflict       = &Error{Kind: KindConflict}

	// ErrInvalidCatalog is returned by Build when the reference data is inconsistent
	ErrInvalidCatalog = errors.New("invalid status catalog")
)

// NotFound builds a not_found rejection.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidAction builds the rejection for an action with no edge from the current status.
func InvalidAction(from Status, action Action) *Error {
	return &Error{
		Kind:    KindInvalidAction,
		Message: fmt.Sprintf("action '%s' not allowed from status '%s'", action, from),
		Status:  from,
		Action:  action,
	}
}

// Forbidden builds a forbidden rejection.
func Forbidden(from Status, action Action, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...), Status: from, Action: action}
}

// InvalidRequest builds an invalid_request rejection.
func InvalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds the rejection for a lost compare-and-update.
func Conflict(from Status, action Action) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("incident is no longer in status '%s'; reload and retry '%s'", from, action),
		Status:  from,
		Action:  action,
	}
}

// KindOf returns the kind of a workflow error or "" for anything else.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
