package http

import (
	"time"

	"github.com/garyjia/incident-intake/internal/application/service"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// CreateIncidentRequest is the body of POST /api/incidents
type CreateIncidentRequest struct {
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description"`
	AssigneeUserID *string `json:"assigneeUserId"`
}

// UpdateIncidentRequest is the body of PUT /api/incidents/:id
type UpdateIncidentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// UpdateStatusRequest is the body of POST /api/incidents/:id/status
type UpdateStatusRequest struct {
	ActionCode       string  `json:"actionCode" binding:"required"`
	Comment          *string `json:"comment"`
	ReassignToUserID *string `json:"reassignToUserId"`
}

// ListIncidentsRequest represents query parameters for listing incidents
type ListIncidentsRequest struct {
	Status   string `form:"status"`
	Creator  string `form:"creator"`
	Assignee string `form:"assignee"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// IncidentResponse represents an incident in API responses
type IncidentResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Priority         string  `json:"priority,omitempty"`
	SuggestedActions string  `json:"suggestedActions,omitempty"`
	Status           string  `json:"status"`
	CreatorUserID    string  `json:"creatorUserId"`
	AssigneeUserID   *string `json:"assigneeUserId"`
	Version          int64   `json:"version"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

// IncidentWithFlagsResponse is an incident plus the caller's permitted actions
type IncidentWithFlagsResponse struct {
	IncidentResponse
	domainwf.ActionFlags
}

// HistoryEntryResponse is one ledger row
type HistoryEntryResponse struct {
	ID          string  `json:"id"`
	Action      string  `json:"actionCode"`
	FromStatus  string  `json:"fromStatus"`
	ToStatus    string  `json:"toStatus"`
	ActorUserID string  `json:"actorUserId"`
	Comment     *string `json:"comment"`
	ChangedAt   string  `json:"changedAt"`
}

// ListNotificationsRequest represents query parameters for the inbox
type ListNotificationsRequest struct {
	UnreadOnly bool `form:"unreadOnly"`
	Limit      int  `form:"limit"`
	Offset     int  `form:"offset"`
}

// NotificationResponse is one inbox entry
type NotificationResponse struct {
	ID         string  `json:"id"`
	IncidentID string  `json:"incidentId"`
	TypeCode   string  `json:"typeCode"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Delivery   string  `json:"delivery"`
	IsRead     bool    `json:"isRead"`
	ReadAt     *string `json:"readAt"`
	CreatedAt  string  `json:"createdAt"`
}

// NotificationPageResponse is one page of the inbox
type NotificationPageResponse struct {
	Items  []NotificationResponse `json:"items"`
	Total  int                    `json:"total"`
	Unread int                    `json:"unread"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// StatusResponse describes one catalog status and what leaves it
type StatusResponse struct {
	Code        string               `json:"code"`
	Name        string               `json:"name"`
	NameAr      string               `json:"nameAr,omitempty"`
	Initial     bool                 `json:"initial"`
	Terminal    bool                 `json:"terminal"`
	Editable    bool                 `json:"editable"`
	Transitions []TransitionResponse `json:"transitions"`
}

// TransitionResponse describes one permitted move
type TransitionResponse struct {
	Action    string `json:"actionCode"`
	To        string `json:"toStatus"`
	Initiator string `json:"initiator"`
	Reassigns bool   `json:"reassignsAssignee"`
}

// formatTime keeps sub-second precision so entries written within the same
// second stay distinguishable to clients
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toIncidentResponse(inc *entity.Incident) IncidentResponse {
	return IncidentResponse{
		ID:               inc.ID,
		Title:            inc.Title,
		Description:      inc.Description,
		Priority:         inc.Priority,
		SuggestedActions: inc.SuggestedActions,
		Status:           inc.StatusCode,
		CreatorUserID:    inc.CreatorUserID,
		AssigneeUserID:   inc.AssigneeUserID,
		Version:          inc.Version,
		CreatedAt:        formatTime(inc.CreatedAt),
		UpdatedAt:        formatTime(inc.UpdatedAt),
	}
}

func toIncidentWithFlags(view *service.IncidentView) IncidentWithFlagsResponse {
	flags := view.Flags
	if flags.NextActions == nil {
		flags.NextActions = []domainwf.Action{}
	}
	return IncidentWithFlagsResponse{
		IncidentResponse: toIncidentResponse(view.Incident),
		ActionFlags:      flags,
	}
}

func toHistoryResponse(entries []*entity.StatusHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:          e.ID,
			Action:      e.ActionCode,
			FromStatus:  e.FromStatusCode,
			ToStatus:    e.ToStatusCode,
			ActorUserID: e.ActorUserID,
			Comment:     e.Comment,
			ChangedAt:   formatTime(e.ChangedAt),
		})
	}
	return out
}

func toStatusResponses(catalog *domainwf.Catalog) []StatusResponse {
	statuses := catalog.Statuses()
	out := make([]StatusResponse, 0, len(statuses))
	for _, st := range statuses {
		transitions := make([]TransitionResponse, 0)
		for _, t := range catalog.From(st.Code) {
			transitions = append(transitions, TransitionResponse{
				Action:    string(t.Action),
				To:        string(t.To),
				Initiator: string(t.Initiator),
				Reassigns: t.Reassigns,
			})
		}
		out = append(out, StatusResponse{
			Code:        string(st.Code),
			Name:        st.Name,
			NameAr:      st.NameAr,
			Initial:     st.Initial,
			Terminal:    st.Terminal,
			Editable:    st.Editable,
			Transitions: transitions,
		})
	}
	return out
}

func toNotificationPage(page *service.InboxPage) NotificationPageResponse {
	items := make([]NotificationResponse, 0, len(page.Items))
	for _, n := range page.Items {
		var readAt *string
		if n.ReadAt != nil {
			v := formatTime(*n.ReadAt)
			readAt = &v
		}
		items = append(items, NotificationResponse{
			ID:         n.ID,
			IncidentID: n.IncidentID,
			TypeCode:   n.TypeCode,
			Title:      n.Title,
			Message:    n.Message,
			Delivery:   n.Status,
			IsRead:     n.IsRead(),
			ReadAt:     readAt,
			CreatedAt:  formatTime(n.CreatedAt),
		})
	}
	return NotificationPageResponse{
		Items:  items,
		Total:  page.Total,
		Unread: page.Unread,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}
