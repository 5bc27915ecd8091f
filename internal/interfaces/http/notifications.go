package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/incident-intake/internal/application/service"
)

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	var req ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}

	page, err := h.inbox.Inbox(c.Request.Context(), actorID(c), service.InboxQuery{
		UnreadOnly: req.UnreadOnly,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toNotificationPage(page)})
}

// NotificationStats handles GET /api/notifications/stats
func (h *Handlers) NotificationStats(c *gin.Context) {
	stats, err := h.inbox.Stats(c.Request.Context(), actorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.inbox.MarkRead(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), actorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"marked": n}})
}

// DeleteNotification handles DELETE /api/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.inbox.Delete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
