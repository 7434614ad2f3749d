package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Google     GoogleConfig     `mapstructure:"google"`
	Sheets     SheetsConfig     `mapstructure:"sheets"`
	Columns    ColumnsConfig    `mapstructure:"columns"`
	Validation ValidationConfig `mapstructure:"validation"`
	Email      EmailConfig      `mapstructure:"email"`
	Branding   BrandingConfig   `mapstructure:"branding"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	APIKeys      []string      `mapstructure:"api_keys"`
}

// DatabaseConfig holds the optional audit mirror connection
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GoogleConfig holds credentials shared by the Sheets, Gmail and Drive clients
type GoogleConfig struct {
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	RefreshToken    string `mapstructure:"refresh_token"`
	CredentialsFile string `mapstructure:"credentials_file"`
	UserEmail       string `mapstructure:"user_email"`
}

// SheetsConfig identifies the spreadsheet and its well-known sheets
type SheetsConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	// Primary forces the order sheet; empty means auto-detect.
	Primary     string `mapstructure:"primary"`
	ConfigSheet string `mapstructure:"config_sheet"`
}

// ColumnsConfig lists header synonyms per logical field
type ColumnsConfig struct {
	Email       []string `mapstructure:"email"`
	Name        []string `mapstructure:"name"`
	PO          []string `mapstructure:"po"`
	Description []string `mapstructure:"description"`
	Quote       []string `mapstructure:"quote"`
	Ordered     []string `mapstructure:"ordered"`
	Notified    string   `mapstructure:"notified_header"`
	MessageKey  string   `mapstructure:"message_key_header"`
}

// ValidationConfig holds input limits and the affirmative token list
type ValidationConfig struct {
	MaxEmailLength       int      `mapstructure:"max_email_length"`
	MaxPOLength          int      `mapstructure:"max_po_length"`
	MaxDescriptionLength int      `mapstructure:"max_description_length"`
	MaxNameLength        int      `mapstructure:"max_name_length"`
	Strict               bool     `mapstructure:"strict"`
	AffirmativeValues    []string `mapstructure:"affirmative_values"`
}

// EmailConfig holds message content and sender settings
type EmailConfig struct {
	Subject            string   `mapstructure:"subject"`
	Greeting           string   `mapstructure:"greeting"`
	Signature          string   `mapstructure:"signature"`
	Sender             string   `mapstructure:"sender"`
	FallbackSenders    []string `mapstructure:"fallback_senders"`
	ReplyTo            string   `mapstructure:"reply_to"`
	AttachQuote        bool     `mapstructure:"attach_quote"`
	MaxAttachmentBytes int64    `mapstructure:"max_attachment_bytes"`
	DateFormat         string   `mapstructure:"date_format"`
	TimeZone           string   `mapstructure:"time_zone"`
}

// LogoConfig describes a single logo image
type LogoConfig struct {
	URL       string `mapstructure:"url"`
	Filename  string `mapstructure:"filename"`
	AltText   string `mapstructure:"alt_text"`
	MaxWidth  string `mapstructure:"max_width"`
	MaxHeight string `mapstructure:"max_height"`
}

// GitHubConfig locates logo assets hosted in a GitHub repository
type GitHubConfig struct {
	Username   string `mapstructure:"username"`
	Repository string `mapstructure:"repository"`
	Branch     string `mapstructure:"branch"`
}

// BrandingConfig holds the logo strategy and its inputs
type BrandingConfig struct {
	Strategy  string       `mapstructure:"strategy"`
	Primary   LogoConfig   `mapstructure:"primary"`
	Secondary LogoConfig   `mapstructure:"secondary"`
	Keywords  []string     `mapstructure:"keywords"`
	GitHub    GitHubConfig `mapstructure:"github"`
}

// RateLimitConfig holds send caps and log retention
type RateLimitConfig struct {
	PerHour    int    `mapstructure:"per_hour"`
	PerDay     int    `mapstructure:"per_day"`
	ScanWindow int    `mapstructure:"scan_window"`
	MaxEntries int    `mapstructure:"max_entries"`
	SheetName  string `mapstructure:"sheet_name"`
}

// DedupConfig holds duplicate detection settings
type DedupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	BatchSize     int `mapstructure:"batch_size"`
}

// AuditConfig holds the audit sheet settings
type AuditConfig struct {
	SheetName  string `mapstructure:"sheet_name"`
	MaxEntries int    `mapstructure:"max_entries"`
	Version    string `mapstructure:"version"`
}

// Lock backends
const (
	LockAuto  = "auto"
	LockFile  = "file"
	LockMySQL = "mysql"
	LockLocal = "local"
)

// PipelineConfig holds per-row processing settings
type PipelineConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	// LockBackend shares the document lock between processes: "file" on
	// one host, "mysql" across hosts, "auto" picks mysql when the database
	// is enabled. "local" only serializes within the process.
	LockBackend string `mapstructure:"lock_backend"`
	LockDir     string `mapstructure:"lock_dir"`
}

// ResolvedLockBackend returns the backend "auto" stands for
func (c *Config) ResolvedLockBackend() string {
	if c.Pipeline.LockBackend != LockAuto && c.Pipeline.LockBackend != "" {
		return c.Pipeline.LockBackend
	}
	if c.Database.Enabled {
		return LockMySQL
	}
	return LockFile
}

// SchedulerConfig holds the pending-row sweep configuration
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// LoggingConfig holds logrus settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	SheetHook  bool   `mapstructure:"sheet_hook"`
	SheetName  string `mapstructure:"sheet_name"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// LoadConfig loads configuration from environment variables and config file.
// An empty configFile searches ./config.yaml and ./config/config.yaml.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with only defaults applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("google.user_email", "me")

	v.SetDefault("sheets.config_sheet", "Config")

	v.SetDefault("columns.email", []string{"email", "email address", "e-mail"})
	v.SetDefault("columns.name", []string{"name", "full name", "requester name", "user name"})
	v.SetDefault("columns.po", []string{"purchase order number", "po number", "po #", "order number", "order #"})
	v.SetDefault("columns.description", []string{"purchase order description", "description", "order description", "item description", "desc"})
	v.SetDefault("columns.quote", []string{"quote pdf", "quote", "quote file", "pdf quote"})
	v.SetDefault("columns.ordered", []string{"order placed?", "order placed", "ordered", "status", "order status", "placed"})
	v.SetDefault("columns.notified_header", "Notified")
	v.SetDefault("columns.message_key_header", "MessageKey")

	v.SetDefault("validation.max_email_length", 254)
	v.SetDefault("validation.max_po_length", 50)
	v.SetDefault("validation.max_description_length", 1000)
	v.SetDefault("validation.max_name_length", 100)
	v.SetDefault("validation.strict", true)
	v.SetDefault("validation.affirmative_values", []string{
		"yes", "y", "true", "1", "placed", "ordered", "complete", "done",
		"completed", "finished", "sent", "order placed", "order sent",
		"confirmed", "approved", "processed",
	})

	v.SetDefault("email.subject", "Your order has been placed")
	v.SetDefault("email.greeting", "Hello")
	v.SetDefault("email.signature", "-- Purchasing Team")
	v.SetDefault("email.sender", "auto")
	v.SetDefault("email.attach_quote", false)
	v.SetDefault("email.max_attachment_bytes", 25*1024*1024)
	v.SetDefault("email.date_format", "Jan 2, 2006 3:04 PM MST")
	v.SetDefault("email.time_zone", "Local")

	v.SetDefault("branding.strategy", "primary")
	v.SetDefault("branding.primary.filename", "logo.png")
	v.SetDefault("branding.primary.alt_text", "Company Logo")
	v.SetDefault("branding.primary.max_width", "200px")
	v.SetDefault("branding.primary.max_height", "80px")
	v.SetDefault("branding.secondary.filename", "logo2.png")
	v.SetDefault("branding.secondary.alt_text", "Partner Logo")
	v.SetDefault("branding.secondary.max_width", "200px")
	v.SetDefault("branding.secondary.max_height", "80px")
	v.SetDefault("branding.keywords", []string{"university", "student"})
	v.SetDefault("branding.github.branch", "main")

	v.SetDefault("rate_limit.per_hour", 50)
	v.SetDefault("rate_limit.per_day", 200)
	v.SetDefault("rate_limit.scan_window", 200)
	v.SetDefault("rate_limit.max_entries", 500)
	v.SetDefault("rate_limit.sheet_name", "Rate_Limit_Log")

	v.SetDefault("dedup.retention_days", 30)
	v.SetDefault("dedup.batch_size", 100)

	v.SetDefault("audit.sheet_name", "Email_Backup_Log")
	v.SetDefault("audit.max_entries", 1000)
	v.SetDefault("audit.version", "2.0")

	v.SetDefault("pipeline.lock_timeout", "10s")
	v.SetDefault("pipeline.lock_backend", LockAuto)
	v.SetDefault("pipeline.lock_dir", "")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.sheet_hook", false)
	v.SetDefault("logging.sheet_name", "Automation_Log")
	v.SetDefault("logging.max_entries", 500)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.enabled", "DB_ENABLED")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Google
	v.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	v.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	v.BindEnv("google.refresh_token", "GOOGLE_REFRESH_TOKEN")
	v.BindEnv("google.credentials_file", "GOOGLE_CREDENTIALS_FILE")
	v.BindEnv("google.user_email", "GOOGLE_USER_EMAIL")

	// Sheets
	v.BindEnv("sheets.spreadsheet_id", "SPREADSHEET_ID")
	v.BindEnv("sheets.primary", "SHEET_NAME")

	// Email
	v.BindEnv("email.sender", "EMAIL_SENDER")
	v.BindEnv("email.reply_to", "EMAIL_REPLY_TO")

	// Limits
	v.BindEnv("rate_limit.per_hour", "MAX_EMAILS_PER_HOUR")
	v.BindEnv("rate_limit.per_day", "MAX_EMAILS_PER_DAY")
	v.BindEnv("dedup.retention_days", "DUPLICATE_CHECK_DAYS")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")

	v.BindEnv("logging.level", "LOG_LEVEL")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet id is required")
	}

	if c.Google.CredentialsFile == "" {
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RefreshToken == "" {
			return fmt.Errorf("Google OAuth2 credentials are required when no credentials file is set")
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	}

	if len(c.Columns.Email) == 0 || len(c.Columns.Ordered) == 0 {
		return fmt.Errorf("email and ordered column synonyms are required")
	}

	if strings.TrimSpace(c.Email.Subject) == "" {
		return fmt.Errorf("email subject is required")
	}

	switch strings.ToLower(c.Email.Sender) {
	case "auto", "config":
	default:
		if _, err := mail.ParseAddress(c.Email.Sender); err != nil {
			return fmt.Errorf("email sender must be auto, config or an address: %q", c.Email.Sender)
		}
	}

	if !ValidLogoStrategy(c.Branding.Strategy) {
		return fmt.Errorf("unknown logo strategy %q", c.Branding.Strategy)
	}

	if c.RateLimit.PerHour <= 0 || c.RateLimit.PerDay <= 0 {
		return fmt.Errorf("rate limits must be greater than 0")
	}

	if c.Dedup.RetentionDays <= 0 {
		return fmt.Errorf("duplicate retention must be greater than 0")
	}

	if c.Pipeline.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be greater than 0")
	}

	switch c.ResolvedLockBackend() {
	case LockFile, LockLocal:
	case LockMySQL:
		if !c.Database.Enabled {
			return fmt.Errorf("the mysql lock backend needs the database enabled")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Pipeline.LockBackend)
	}

	if c.Scheduler.Enabled && c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	return nil
}

// Logo strategies
const (
	LogoPrimary     = "primary"
	LogoSecondary   = "secondary"
	LogoBoth        = "both"
	LogoConditional = "conditional"
)

// ValidLogoStrategy reports whether s names a known logo strategy
func ValidLogoStrategy(s string) bool {
	switch s {
	case LogoPrimary, LogoSecondary, LogoBoth, LogoConditional:
		return true
	}
	return false
}
