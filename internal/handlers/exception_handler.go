package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pg-recon-backend/internal/services/exception"
	service "pg-recon-backend/internal/services/reconciliation"
)

type ExceptionHandler struct {
	service *service.Service
}

func NewExceptionHandler(s *service.Service) *ExceptionHandler {
	return &ExceptionHandler{service: s}
}

func (h *ExceptionHandler) List(c *gin.Context) {
	status := c.Query("status")
	states, err := h.service.ListExceptions(status, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exceptions": states})
}

func (h *ExceptionHandler) Assign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	var payload struct {
		Assignee string `json:"assignee"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	st, err := h.service.AssignException(id, payload.Assignee)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exception assigned", "state": st})
}

func (h *ExceptionHandler) Snooze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	var payload struct {
		WakeAt      string `json:"wake_at"` // RFC3339
		PerformedBy string `json:"performed_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	wakeAt, err := time.Parse(time.RFC3339, payload.WakeAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wake_at must be RFC3339"})
		return
	}

	st, err := h.service.SnoozeException(id, wakeAt, payload.PerformedBy)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exception snoozed", "state": st})
}

func (h *ExceptionHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	var payload struct {
		Resolution  string `json:"resolution"`
		Note        string `json:"note"`
		PerformedBy string `json:"performed_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	st, err := h.service.ResolveException(id, payload.Resolution, payload.Note, payload.PerformedBy)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exception resolved", "state": st})
}

func (h *ExceptionHandler) Escalate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	var payload struct {
		Reason      string `json:"reason"`
		PerformedBy string `json:"performed_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	st, err := h.service.EscalateException(id, payload.PerformedBy, payload.Reason)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exception escalated", "state": st})
}

func (h *ExceptionHandler) WontFix(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	var payload struct {
		Note        string `json:"note"`
		PerformedBy string `json:"performed_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	st, err := h.service.WontFixException(id, payload.Note, payload.PerformedBy)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exception closed as wont_fix", "state": st})
}

// writeWorkflowError maps workflow failures onto the API: validation
// problems are the caller's to fix, a stale write asks them to re-read and
// retry, and only genuine faults become 500s.
func writeWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, exception.ErrInvalidTransition),
		errors.Is(err, exception.ErrMissingAssignee),
		errors.Is(err, exception.ErrMissingWakeTime),
		errors.Is(err, exception.ErrMissingResolution):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "exception not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
