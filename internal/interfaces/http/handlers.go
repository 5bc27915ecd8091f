package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/application/service"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	incidents service.IncidentService
	inbox     NotificationInbox
	health    HealthCheck
	logger    Logger
}

// NewHandlers creates a new Handlers instance. inbox may be nil when the
// notification routes are not mounted.
func NewHandlers(incidents service.IncidentService, inbox NotificationInbox, health HealthCheck, logger Logger) *Handlers {
	return &Handlers{
		incidents: incidents,
		inbox:     inbox,
		health:    health,
		logger:    logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp})
			return
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// ListStatuses handles GET /api/statuses
func (h *Handlers) ListStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toStatusResponses(h.incidents.Catalog()),
	})
}

// CreateIncident handles POST /api/incidents
func (h *Handlers) CreateIncident(c *gin.Context) {
	var req CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: title is required")
		return
	}

	view, err := h.incidents.Create(c.Request.Context(), actorID(c), service.CreateIncidentInput{
		Title:          req.Title,
		Description:    req.Description,
		AssigneeUserID: req.AssigneeUserID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toIncidentWithFlags(view)})
}

// ListIncidents handles GET /api/incidents
func (h *Handlers) ListIncidents(c *gin.Context) {
	var req ListIncidentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}

	incidents, err := h.incidents.List(c.Request.Context(), port.IncidentFilter{
		StatusCode:     req.Status,
		CreatorUserID:  req.Creator,
		AssigneeUserID: req.Assignee,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]IncidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, toIncidentResponse(inc))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetIncident handles GET /api/incidents/:id
func (h *Handlers) GetIncident(c *gin.Context) {
	view, err := h.incidents.Get(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toIncidentWithFlags(view)})
}

// UpdateIncident handles PUT /api/incidents/:id
func (h *Handlers) UpdateIncident(c *gin.Context) {
	var req UpdateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	view, err := h.incidents.Update(c.Request.Context(), c.Param("id"), actorID(c), service.UpdateIncidentInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toIncidentWithFlags(view)})
}

// UpdateStatus handles POST /api/incidents/:id/status
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: actionCode is required")
		return
	}

	view, err := h.incidents.Transition(c.Request.Context(), workflow.AttemptRequest{
		IncidentID:       c.Param("id"),
		ActorUserID:      actorID(c),
		Action:           domainwf.Action(req.ActionCode),
		Comment:          req.Comment,
		ReassignToUserID: req.ReassignToUserID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toIncidentWithFlags(view)})
}

// GetHistory handles GET /api/incidents/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	entries, err := h.incidents.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toHistoryResponse(entries)})
}

// ExportHistory handles GET /api/incidents/:id/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	id := c.Param("id")
	data, contentType, err := h.incidents.ExportHistory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFileName(id, time.Now())))
	c.Data(http.StatusOK, contentType, data)
}

func exportFileName(incidentID string, at time.Time) string {
	return fmt.Sprintf("incident-%s-history-%s.xlsx", incidentID, at.UTC().Format("20060102T150405Z"))
}
