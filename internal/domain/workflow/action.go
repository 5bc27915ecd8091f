package workflow

import "fmt"

// Action is the verb a caller invokes against an incident
type Action string

const (
	ActionSendToReview Action = "send_to_review"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Initiator names the relationship to the incident a transition requires.
type Initiator string

const (
	InitiatorCreator  Initiator = "creator"
	InitiatorAssignee Initiator = "assignee"
)

// ParseInitiator validates a persisted initiator value.
func ParseInitiator(s string) (Initiator, error) {
	switch Initiator(s) {
	case InitiatorCreator, InitiatorAssignee:
		return Initiator(s), nil
	default:
		return "", fmt.Errorf("%w: unknown initiator %q", ErrInvalidCatalog, s)
	}
}

// Transition is one active edge of the catalog.
type Transition struct {
	ID        string
	From      Status
	To        Status
	Action    Action
	Initiator Initiator
	// Reassigns marks the send_to_review class: the edge sets or keeps the assignee.
	Reassigns bool
}
