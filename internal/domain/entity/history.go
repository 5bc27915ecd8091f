package entity

import "time"

// StatusHistory is one append-only audit entry written per successful transition
type StatusHistory struct {
	ID             string    `json:"id"`
	IncidentID     string    `json:"incident_id"`
	FromStatusID   string    `json:"from_status_id"`
	ToStatusID     string    `json:"to_status_id"`
	FromStatusCode string    `json:"from_status_code"`
	ToStatusCode   string    `json:"to_status_code"`
	ActionCode     string    `json:"action_code"`
	ActorUserID    string    `json:"actor_user_id"`
	Comment        *string   `json:"comment,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}
