// Package config provides centralized configuration management for the
// import service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Import   ImportConfig
	Backend  BackendConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 90s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of files parsed at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds parsing and validation of one file (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// ImportConfig holds validation and report settings.
type ImportConfig struct {
	// MaxRows is the row limit for schemas that declare none (default: 500)
	MaxRows int `env:"IMPORT_MAX_ROWS" default:"500"`

	// ReportLimit caps the number of error lines in a report (default: 10)
	ReportLimit int `env:"IMPORT_MAX_REPORTED_ERRORS" default:"10"`

	// PreviewRows is how many accepted rows a snapshot carries (default: 20)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" default:"20"`
}

// BackendConfig holds settings for the academic management API.
type BackendConfig struct {
	// URL is the API base URL (required)
	URL string `env:"BACKEND_URL" envAlt:"API_URL" required:"true"`

	// Token is the service token used when a request carries no operator token
	Token string `env:"BACKEND_TOKEN"`

	// Timeout bounds one backend call (default: 60s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"60s"`

	// MaxRetries applies to reference-data reads only (default: 3)
	MaxRetries int `env:"BACKEND_MAX_RETRIES" default:"3"`

	AdminsPath      string `env:"BACKEND_ADMINS_PATH" default:"/api/admins/bulk"`
	ResultsPath     string `env:"BACKEND_RESULTS_PATH" default:"/api/results/bulk"`
	DepartmentsPath string `env:"BACKEND_DEPARTMENTS_PATH" default:"/api/departments"`
}

// KindPaths maps each import kind to its batch-create path.
func (c *BackendConfig) KindPaths() map[string]string {
	return map[string]string{
		"admins":  c.AdminsPath,
		"results": c.ResultsPath,
	}
}

// SessionConfig holds import session lifetime settings.
type SessionConfig struct {
	// TTL is how long an untouched session is kept (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// CheckInterval is how often idle sessions are swept; 0 derives it from TTL
	CheckInterval time.Duration `env:"SESSION_CHECK_INTERVAL" default:"0s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
