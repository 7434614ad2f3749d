package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"po-notifier-go/internal/model"
	"po-notifier-go/internal/pipeline"
)

// statusFor maps a row outcome to an HTTP status
func statusFor(o pipeline.Outcome) int {
	switch o {
	case pipeline.OutcomeSent, pipeline.OutcomeSkipped, pipeline.OutcomeAlreadyNotified:
		return http.StatusOK
	case pipeline.OutcomeDuplicate:
		return http.StatusConflict
	case pipeline.OutcomeValidationFailed, pipeline.OutcomeMappingNotFound:
		return http.StatusUnprocessableEntity
	case pipeline.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case pipeline.OutcomeSendFailed:
		return http.StatusBadGateway
	case pipeline.OutcomeLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleEdit runs the edit trigger. The trigger never fails, so the
// response is always 200 with the outcome in the body.
func (h *Handlers) HandleEdit(c *gin.Context) {
	var ev model.EditEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		abort(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, h.processor.HandleEdit(c.Request.Context(), ev))
}

// NotifyRow sends the confirmation for one row of the primary sheet.
// force=true skips duplicate suppression.
func (h *Handlers) NotifyRow(c *gin.Context) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil || row < 2 {
		abort(c, http.StatusBadRequest, "invalid_row", "Row must be a data row number (2 or greater)")
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	primary, err := h.processor.PrimarySheet(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, "sheet_error", err.Error())
		return
	}

	res := h.processor.ProcessRow(c.Request.Context(), primary, row, pipeline.Options{AllowDuplicate: force})
	c.JSON(statusFor(res.Outcome), res)
}

// Sweep processes every pending row now. retry_failed=true also retries
// rows marked with an earlier error.
func (h *Handlers) Sweep(c *gin.Context) {
	retry, _ := strconv.ParseBool(c.DefaultQuery("retry_failed", "false"))
	results, err := h.processor.SweepPending(c.Request.Context(), pipeline.SweepOptions{RetryFailed: retry})
	if err != nil {
		abort(c, http.StatusInternalServerError, "sweep_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, SweepResponse{Processed: len(results), Results: results})
}
