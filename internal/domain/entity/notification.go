package entity

import "time"

// Notification is an outbox row delivered to a user after a transition commits
type Notification struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	IncidentID string     `json:"incident_id"`
	TypeCode   string     `json:"type_code"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	// ReadAt is set once the recipient marks it read in their inbox
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// IsRead reports whether the recipient has seen the notification
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// NotificationStats counts a user's inbox
type NotificationStats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}
