package event

// Type identifies the type of domain event
type Type string

const (
	TypeIncidentCreated  Type = "incident.created"
	TypeIncidentUpdated  Type = "incident.updated"
	TypeStatusChanged    Type = "incident.status_changed"
	TypeIncidentAssigned Type = "incident.assigned"
)

// Payload keys shared by publishers and handlers
const (
	KeyFromStatus = "from_status"
	KeyToStatus   = "to_status"
	KeyAction     = "action"
	KeyAssignee   = "assignee_user_id"
	KeyCreator    = "creator_user_id"
	KeyTitle      = "title"
	KeyComment    = "comment"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeIncidentCreated,
		TypeIncidentUpdated,
		TypeStatusChanged,
		TypeIncidentAssigned:
		return true
	default:
		return false
	}
}
