package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// statusForKind maps workflow error kinds onto HTTP statuses
func statusForKind(kind domainwf.Kind) int {
	switch kind {
	case domainwf.KindNotFound:
		return http.StatusNotFound
	case domainwf.KindInvalidAction:
		return http.StatusUnprocessableEntity
	case domainwf.KindForbidden:
		return http.StatusForbidden
	case domainwf.KindInvalidRequest:
		return http.StatusBadRequest
	case domainwf.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Workflow errors keep their message; anything else
// is logged and reported as an opaque internal error.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var wfErr *domainwf.Error
	if errors.As(err, &wfErr) {
		c.JSON(statusForKind(wfErr.Kind), Response{
			Success: false,
			Error:   &ErrorBody{Kind: string(wfErr.Kind), Message: wfErr.Message},
		})
		return
	}

	h.logger.Error("Request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   &ErrorBody{Kind: "internal", Message: "internal error"},
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &ErrorBody{Kind: string(domainwf.KindInvalidRequest), Message: msg},
	})
}
