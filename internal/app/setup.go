package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"po-notifier-go/internal/audit"
	"po-notifier-go/internal/config"
	"po-notifier-go/internal/database"
	"po-notifier-go/internal/gauth"
	"po-notifier-go/internal/handler"
	"po-notifier-go/internal/lock"
	"po-notifier-go/internal/metrics"
	"po-notifier-go/internal/notifier"
	"po-notifier-go/internal/pipeline"
	"po-notifier-go/internal/sheet"
)

// components holds everything built from the configuration
type components struct {
	cfg       *config.Config
	wb        sheet.Workbook
	auditLog  *audit.SheetLog
	db        *gorm.DB
	repo      *audit.Repository
	registry  *prometheus.Registry
	processor *pipeline.Processor
}

func configureLogging(cfg config.LoggingConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	configureLogging(cfg.Logging)
	return cfg, nil
}

// build wires the Google clients, audit sinks and the pipeline
func build(ctx context.Context, cfg *config.Config) (*components, error) {
	opts, err := gauth.ClientOptions(ctx, cfg.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google credentials: %w", err)
	}

	wb, err := sheet.NewGoogle(ctx, cfg.Sheets.SpreadsheetID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	gmail, err := notifier.NewGmail(ctx, cfg.Google.UserEmail, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}

	var fetcher notifier.AttachmentFetcher
	if cfg.Email.AttachQuote {
		drive, err := notifier.NewDrive(ctx, cfg.Email.MaxAttachmentBytes, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive client: %w", err)
		}
		fetcher = drive
	}

	composer, err := notifier.NewComposer(cfg.Email)
	if err != nil {
		return nil, err
	}
	senders := notifier.NewSenders(cfg.Email, wb, cfg.Sheets.ConfigSheet, gmail)
	n := notifier.New(cfg.Email, composer, gmail, fetcher, senders)

	c := &components{
		cfg:      cfg,
		wb:       wb,
		auditLog: audit.NewSheetLog(wb, cfg.Audit),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var recorder audit.Recorder = c.auditLog
	if cfg.Database.Enabled {
		if c.db, err = database.InitDatabase(cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.repo = audit.NewRepository(c.db)
		recorder = audit.NewMulti(c.auditLog, c.repo)
	}

	if cfg.Logging.SheetHook {
		logrus.AddHook(audit.NewSheetHook(wb, cfg.Logging.SheetName, cfg.Audit.Version, cfg.Logging.MaxEntries))
	}

	c.processor = pipeline.New(cfg, wb, n,
		pipeline.WithAudit(recorder),
		pipeline.WithMetrics(metrics.NewMetrics(c.registry)),
		pipeline.WithSession(config.NewSession()),
		pipeline.WithLock(lock.NewShared(cfg.Pipeline.LockTimeout, c.lockBackend())),
	)
	return c, nil
}

// lockBackend shares the document lock with the other processes working
// on the same spreadsheet
func (c *components) lockBackend() lock.Backend {
	backend := c.cfg.ResolvedLockBackend()
	logrus.WithFields(logrus.Fields{
		"backend":        backend,
		"spreadsheet_id": c.cfg.Sheets.SpreadsheetID,
	}).Debug("Document lock configured")

	switch backend {
	case config.LockMySQL:
		return lock.NewMySQL(c.db, c.cfg.Sheets.SpreadsheetID)
	case config.LockLocal:
		return nil
	default:
		return lock.NewFile(c.cfg.Pipeline.LockDir, c.cfg.Sheets.SpreadsheetID)
	}
}

// auditReader serves the audit API from the database when it is enabled,
// since the sheet log is capped
func (c *components) auditReader() handler.AuditReader {
	if c.repo != nil {
		return c.repo
	}
	return c.auditLog
}

func (c *components) Close() {
	if c.db == nil {
		return
	}
	if err := database.Close(c.db); err != nil {
		logrus.Errorf("Failed to close database: %v", err)
	}
}
