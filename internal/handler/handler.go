package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"po-notifier-go/internal/model"
	"po-notifier-go/internal/pipeline"
	"po-notifier-go/internal/scheduler"
	"po-notifier-go/internal/sheet"
)

// AuditReader returns recent audit entries, newest first
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]model.AuditEntry, error)
	ByMessageKey(ctx context.Context, key string, limit int) ([]model.AuditEntry, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	processor *pipeline.Processor
	wb        sheet.Workbook
	audit     AuditReader
	scheduler *scheduler.Scheduler
	db        *gorm.DB
	gatherer  prometheus.Gatherer
	apiKeys   []string
}

// NewHandlers creates new HTTP handlers. db may be nil when the SQL audit
// mirror is disabled.
func NewHandlers(processor *pipeline.Processor, wb sheet.Workbook, audit AuditReader, sched *scheduler.Scheduler, db *gorm.DB, gatherer prometheus.Gatherer, apiKeys []string) *Handlers {
	return &Handlers{
		processor: processor,
		wb:        wb,
		audit:     audit,
		scheduler: sched,
		db:        db,
		gatherer:  gatherer,
		apiKeys:   apiKeys,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	api.Use(APIKeyAuth(h.apiKeys))
	{
		api.POST("/events/edit", h.HandleEdit)
		api.POST("/rows/:row/notify", h.NotifyRow)
		api.POST("/sweep", h.Sweep)

		api.GET("/status", h.GetStatus)
		api.GET("/audit", h.GetAudit)
		api.POST("/integrity", h.RunIntegrity)
		api.GET("/rate-limit", h.GetRateLimit)
		api.DELETE("/rate-limit", h.ResetRateLimit)
		api.PUT("/session/logo-strategy", h.SetLogoStrategy)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Sheets:    "ok",
		Metrics:   make(map[string]string),
	}

	if _, err := h.wb.SheetNames(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Sheets = "error"
		logrus.Errorf("Spreadsheet health check failed: %v", err)
	}

	if h.db != nil {
		response.Database = "ok"
		if err := h.db.WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
			response.Status = "error"
			response.Database = "error"
			logrus.Errorf("Database health check failed: %v", err)
		}
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func abort(c *gin.Context, code int, kind, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    code,
	})
}
