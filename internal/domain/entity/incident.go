package entity

import "time"

// Incident is the aggregate whose status is driven by the workflow engine.
// Status and assignee are only ever written through a compare-and-update
// guarded by the previously observed status and version.
type Incident struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Priority         string    `json:"priority,omitempty"`
	SuggestedActions string    `json:"suggested_actions,omitempty"`
	CreatorUserID    string    `json:"creator_user_id"`
	AssigneeUserID   *string   `json:"assignee_user_id,omitempty"`
	StatusID         string    `json:"status_id"`
	StatusCode       string    `json:"status_code"`
	// Version counts applied transitions
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Assignee returns the assignee id or "" when nobody is assigned.
func (i *Incident) Assignee() string {
	if i == nil || i.AssigneeUserID == nil {
		return ""
	}
	return *i.AssigneeUserID
}

// StatusUpdate is the guarded write applied by a transition. The write only
// lands if both the status and the version still match what was read; a
// status that left and came back carries a newer version.
type StatusUpdate struct {
	IncidentID       string
	ExpectedStatusID string
	ExpectedVersion  int64
	NewStatusID      string
	// Reassign controls whether AssigneeUserID is written at all
	Reassign         bool
	AssigneeUserID   *string
	UpdatedAt        time.Time
}
