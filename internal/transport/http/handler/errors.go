package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

const errInternalServer = "Internal server error"

// respondError maps the usecase error taxonomy onto HTTP statuses:
// validation failures 400, permission 403, not-found 404, state conflicts
// 409, anything else 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyDaysOfWeek),
		errors.Is(err, domain.ErrInvalidTimeZone),
		errors.Is(err, domain.ErrInvalidReleaseTime),
		errors.Is(err, domain.ErrInvalidMaxExecutions),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidCronExpr),
		errors.Is(err, domain.ErrInvalidFrequency):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrScheduleNotFound),
		errors.Is(err, domain.ErrSequenceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrScheduleNotActive),
		errors.Is(err, domain.ErrScheduleNotResumable),
		errors.Is(err, domain.ErrScheduleTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
