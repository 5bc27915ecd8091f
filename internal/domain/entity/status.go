package entity

// Status is a row of the status reference table.
type Status struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	NameAr     string `json:"name_ar"`
	IsInitial  bool   `json:"is_initial"`
	IsTerminal bool   `json:"is_terminal"`
	IsEditable bool   `json:"is_editable"`
}

// StatusTransition is a row of the transition reference table.
type StatusTransition struct {
	ID                string `json:"id"`
	FromStatusID      string `json:"from_status_id"`
	ToStatusID        string `json:"to_status_id"`
	ActionCode        string `json:"action_code"`
	Initiator         string `json:"initiator"`
	ReassignsAssignee bool   `json:"reassigns_assignee"`
	IsActive          bool   `json:"is_active"`
}
