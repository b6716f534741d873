// Package config provides nanoservices configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/SuperID/nanoservices/pkg/traceid"
)

const logPrefix = "config:LoadConfig"

// Recorder names accepted in TRACE_RECORDERS.
const (
	RecorderStream = "stream"
	RecorderLogger = "logger"
	RecorderComms  = "comms"
	RecorderStore  = "store"
	RecorderOTel   = "otel"
	RecorderBuffer = "buffer"
)

var knownRecorders = map[string]bool{
	RecorderStream: true,
	RecorderLogger: true,
	RecorderComms:  true,
	RecorderStore:  true,
	RecorderOTel:   true,
	RecorderBuffer: true,
}

// Config holds nanoservices configuration.
type Config struct {
	// Dispatcher
	RequestIDLength int `envconfig:"REQUEST_ID_LENGTH" default:"24"`

	// Trace recorders, comma separated: stream, logger, comms, store, otel, buffer.
	TraceRecorders []string `envconfig:"TRACE_RECORDERS" default:"stream,buffer"`
	// TraceLogFile is appended to by the stream recorder; empty writes to stdout.
	TraceLogFile string `envconfig:"TRACE_LOG_FILE"`
	TraceFormat  string `envconfig:"TRACE_FORMAT" default:"$date $time [$id] [$type] $content"`
	TraceNewline bool   `envconfig:"TRACE_NEWLINE" default:"true"`

	// COMMS: trace events are published under TraceSubject (empty = nanoservices.trace).
	COMMSURL     string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName    string `envconfig:"SERVICE_NAME" default:"nanoservices"`
	TraceSubject string `envconfig:"TRACE_SUBJECT"`

	// Database; MigrationPath empty = migrations compiled into the binary.
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	RunMigrations   bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath   string `envconfig:"MIGRATION_PATH"`
	StoreBufferSize int    `envconfig:"STORE_BUFFER_SIZE" default:"1024"`

	// HTTP health and trace viewer (HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr       string `envconfig:"HTTP_ADDR"`
	HTTPPort       int    `envconfig:"HTTP_PORT" default:"8080"`
	BufferCapacity int    `envconfig:"BUFFER_CAPACITY" default:"10000"`

	// DemoInterval paces the sample signup traffic; 0 disables it.
	DemoInterval    time.Duration `envconfig:"DEMO_INTERVAL" default:"1s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	for i, r := range c.TraceRecorders {
		c.TraceRecorders[i] = strings.ToLower(strings.TrimSpace(r))
	}
	return &c, nil
}

// HasRecorder reports whether name is listed in TRACE_RECORDERS.
func (c *Config) HasRecorder(name string) bool {
	for _, r := range c.TraceRecorders {
		if r == name {
			return true
		}
	}
	return false
}

// ValidateForServe checks required config when running the serve loop.
func (c *Config) ValidateForServe() error {
	if c.RequestIDLength < traceid.MinLength || c.RequestIDLength > traceid.MaxLength {
		return fmt.Errorf("%s - REQUEST_ID_LENGTH must be between %d and %d", logPrefix, traceid.MinLength, traceid.MaxLength)
	}
	for _, r := range c.TraceRecorders {
		if !knownRecorders[r] {
			return fmt.Errorf("%s - unknown recorder %q in TRACE_RECORDERS", logPrefix, r)
		}
	}
	if c.HasRecorder(RecorderStore) && c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required for the store recorder", logPrefix)
	}
	if c.HasRecorder(RecorderComms) && c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for the comms recorder", logPrefix)
	}
	if c.BufferCapacity < 0 {
		return fmt.Errorf("%s - BUFFER_CAPACITY must not be negative", logPrefix)
	}
	if c.DemoInterval < 0 {
		return fmt.Errorf("%s - DEMO_INTERVAL must not be negative", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, showlog --db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
