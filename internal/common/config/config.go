// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	CQA           CQAConfig               `mapstructure:"cqa"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether sync history should be written to Postgres.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// CQAConfig holds the default capabilities for the question-answering service and the
// job polling policy. Jobs may override the capabilities per call.
type CQAConfig struct {
	EndpointURL                string `mapstructure:"endpoint_url"`
	EndpointKey                string `mapstructure:"endpoint_key"`
	ProjectName                string `mapstructure:"project_name"`
	APIVersion                 string `mapstructure:"api_version"`
	DeploymentName             string `mapstructure:"deployment_name"`
	UserID                     string `mapstructure:"user_id"`
	RankerType                 string `mapstructure:"ranker_type"`
	IncludeUnstructuredSources *bool  `mapstructure:"include_unstructured_sources"`
	AnswerSpan                 bool   `mapstructure:"answer_span"`

	RequestTimeout    int `mapstructure:"request_timeout"` // milliseconds
	PollInterval      int `mapstructure:"poll_interval"`   // milliseconds
	FetchMaxAttempts  int `mapstructure:"fetch_max_attempts"`
	UploadMaxAttempts int `mapstructure:"upload_max_attempts"`
	LockTTL           int `mapstructure:"lock_ttl"`    // milliseconds
	SessionTTL        int `mapstructure:"session_ttl"` // milliseconds
}

// NotificationConfig holds settings for publishing sync status messages and run reports.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled    bool     `mapstructure:"enabled"`
		Region     string   `mapstructure:"region"`
		From       string   `mapstructure:"from"`
		To         []string `mapstructure:"to"`
		OnlyFailed bool     `mapstructure:"only_failed"`
	} `mapstructure:"email"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the health/metrics server settings.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
