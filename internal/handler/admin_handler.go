package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"po-notifier-go/internal/lock"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/pipeline"
)

func lockStatus(err error) int {
	switch {
	case errors.Is(err, lock.ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrMappingNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetStatus reports the detected sheet, mapping and quota usage
func (h *Handlers) GetStatus(c *gin.Context) {
	report, err := h.processor.Status(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, "status_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetAudit returns recent audit entries
func (h *Handlers) GetAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var (
		entries []model.AuditEntry
		err     error
	)
	if key := c.Query("message_key"); key != "" {
		entries, err = h.audit.ByMessageKey(c.Request.Context(), key, limit)
	} else {
		entries, err = h.audit.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, "audit_error", "Failed to read audit log")
		return
	}
	c.JSON(http.StatusOK, AuditResponse{Entries: entries, Count: len(entries)})
}

// RunIntegrity runs the sheet integrity audit
func (h *Handlers) RunIntegrity(c *gin.Context) {
	report, err := h.processor.AuditIntegrity(c.Request.Context())
	if err != nil {
		code := lockStatus(err)
		abort(c, code, "integrity_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRateLimit reports hourly and daily usage
func (h *Handlers) GetRateLimit(c *gin.Context) {
	status, err := h.processor.RateStatus(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, "rate_limit_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, status)
}

// ResetRateLimit clears the rate event log
func (h *Handlers) ResetRateLimit(c *gin.Context) {
	n, err := h.processor.ResetRateLimit(c.Request.Context())
	if err != nil {
		abort(c, lockStatus(err), "rate_limit_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Rate limits reset",
		"cleared": n,
	})
}

// SetLogoStrategy overrides the logo strategy until the process exits
func (h *Handlers) SetLogoStrategy(c *gin.Context) {
	var req LogoStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	session := h.processor.Session()
	if err := session.SetLogoStrategy(req.Strategy); err != nil {
		abort(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Logo strategy updated",
		"strategy": session.LogoStrategy(),
	})
}
