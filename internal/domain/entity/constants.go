package entity

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification type codes
const (
	NotificationTypeIncidentAssigned      = "incident_assigned"
	NotificationTypeIncidentStatusChanged = "incident_status_changed"
)

// Triage priorities returned by the analyzer
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)
