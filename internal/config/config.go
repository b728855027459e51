// Package config provides configuration management for the dday scheduler.
// It loads configuration from environment variables (after an optional .env
// file) with defaults and validates it before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_FILE: Log file path (default: stdout)
//
// Registry Configuration:
//   - REGISTRY_BACKEND: "eventbridge" or "local" (default: eventbridge)
//   - AWS_REGION / AWS_ACCOUNT_ID: Used to build Lambda ARNs (required for eventbridge)
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN: Optional static credentials
//   - EVENT_BUS_NAME: EventBridge bus (default: default)
//   - RULE_PREFIX: Trigger id namespace (default: workflow-lang)
//   - FUNCTION_PREFIX: Downstream function name prefix (default: workflow-lang)
//   - RESOLVER: "static" (ARNs from region/account) or "lookup" (GetFunction) (default: static)
//   - REGISTRY_TIMEOUT: Per-call timeout (default: 10s)
//   - REGISTRY_RPS: Control plane calls per second (default: 5)
//
// Schedule Configuration:
//   - SCHEDULE_FILE: YAML offset/target table (default: built-in table)
//   - TIMEZONE: Civil timezone of anchor dates (default: Asia/Seoul)
//   - FIRE_TIME: Wall clock time triggers fire at, HH:MM (default: 09:00)
//   - WORKERS: Offsets registered concurrently (default: 4)
//
// Local Backend:
//   - DATABASE_PATH: SQLite database file (default: ./dday_scheduler.db)
//   - POLL_INTERVAL: How often the local runner checks for due triggers (default: 1m)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis address; empty disables the registration lock
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - LOCK_TTL: Registration lock expiry (default: 30s)
//
// Intake:
//   - GITHUB_WEBHOOK_SECRET: Secret for X-Hub-Signature-256 verification
//   - EVENT_LABEL: Issue label that marks an anchor event (default: event)
//   - REPORT_TOPIC_ARN: SNS topic for registration reports (default: log only)
//   - RATE_LIMIT_ENABLED: Enable HTTP rate limiting (default: true)
//   - RATE_LIMIT_RPS: Requests per second per client (default: 10)
package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"dday-scheduler/internal/common/validation"
	"github.com/joho/godotenv"
)

const (
	BackendEventBridge = "eventbridge"
	BackendLocal       = "local"

	ResolverStatic = "static"
	ResolverLookup = "lookup"
)

var (
	fireTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	prefixPattern   = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	accountPattern  = regexp.MustCompile(`^[0-9]{12}$`)
)

// Config holds all configuration values for the scheduler.
type Config struct {
	// Application settings
	Port      int
	LogLevel  string
	LogFormat string
	LogFile   string

	// Registry
	RegistryBackend    string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	EventBusName       string
	RulePrefix         string
	FunctionPrefix     string
	Resolver           string
	RegistryTimeout    time.Duration
	RegistryRPS        int

	// Schedule
	ScheduleFile string
	Timezone     string
	FireTime     string
	Workers      int

	// Local backend
	DatabasePath string
	PollInterval time.Duration

	// Redis coordination
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Intake
	GitHubWebhookSecret string
	EventLabel          string
	ReportTopicARN      string
	RateLimitEnabled    bool
	RateLimitRPS        int
}

// Load reads an optional .env file and builds a Config from the environment.
// It does not validate; call Validate on the result.
func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	return &Config{
		Port:      getIntEnv("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		RegistryBackend:    getEnv("REGISTRY_BACKEND", BackendEventBridge),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccountID:       getEnv("AWS_ACCOUNT_ID", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
		EventBusName:       getEnv("EVENT_BUS_NAME", "default"),
		RulePrefix:         getEnv("RULE_PREFIX", "workflow-lang"),
		FunctionPrefix:     getEnv("FUNCTION_PREFIX", "workflow-lang"),
		Resolver:           getEnv("RESOLVER", ResolverStatic),
		RegistryTimeout:    getDurationEnv("REGISTRY_TIMEOUT", 10*time.Second),
		RegistryRPS:        getIntEnv("REGISTRY_RPS", 5),

		ScheduleFile: getEnv("SCHEDULE_FILE", ""),
		Timezone:     getEnv("TIMEZONE", "Asia/Seoul"),
		FireTime:     getEnv("FIRE_TIME", "09:00"),
		Workers:      getIntEnv("WORKERS", 4),

		DatabasePath: getEnv("DATABASE_PATH", "./dday_scheduler.db"),
		PollInterval: getDurationEnv("POLL_INTERVAL", time.Minute),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		LockTTL:       getDurationEnv("LOCK_TTL", 30*time.Second),

		GitHubWebhookSecret: getEnv("GITHUB_WEBHOOK_SECRET", ""),
		EventLabel:          getEnv("EVENT_LABEL", "event"),
		ReportTopicARN:      getEnv("REPORT_TOPIC_ARN", ""),
		RateLimitEnabled:    getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        getIntEnv("RATE_LIMIT_RPS", 10),
	}
}

// Location loads the configured civil timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// UsesLocalBackend reports whether triggers are stored in SQLite and fired in-process.
func (c *Config) UsesLocalBackend() bool {
	return c.RegistryBackend == BackendLocal
}

// Validate checks required fields, formats and cross-field dependencies.
// All problems are reported at once.
func (c *Config) Validate() error {
	v := validation.NewValidator()

	v.RequireRange(c.Port, 1, 65535, "PORT").
		RequireOneOf(c.LogFormat, []string{"console", "json"}, "LOG_FORMAT").
		RequireOneOf(c.RegistryBackend, []string{BackendEventBridge, BackendLocal}, "REGISTRY_BACKEND").
		RequireOneOf(c.Resolver, []string{ResolverStatic, ResolverLookup}, "RESOLVER").
		RequireMatch(c.RulePrefix, prefixPattern, "RULE_PREFIX", "letters, digits and hyphens").
		RequireMaxLength(c.RulePrefix, 16, "RULE_PREFIX").
		RequireMatch(c.FunctionPrefix, prefixPattern, "FUNCTION_PREFIX", "letters, digits and hyphens").
		RequireMatch(c.FireTime, fireTimePattern, "FIRE_TIME", "a 24h HH:MM time").
		RequireRange(c.Workers, 1, 32, "WORKERS").
		RequirePositive(c.RegistryRPS, "REGISTRY_RPS").
		RequirePositiveDuration(c.RegistryTimeout, "REGISTRY_TIMEOUT").
		RequireString(c.EventLabel, "EVENT_LABEL")

	v.Validate(func() error {
		_, err := c.Location()
		return err
	})

	if c.RegistryBackend == BackendEventBridge {
		v.RequireString(c.AWSRegion, "AWS_REGION")
		v.ValidateIf(c.Resolver == ResolverStatic, func() error {
			return validation.NewValidator().
				RequireMatch(c.AWSAccountID, accountPattern, "AWS_ACCOUNT_ID", "a 12 digit account id").
				Error()
		})
	} else {
		v.RequireString(c.DatabasePath, "DATABASE_PATH").
			RequirePositiveDuration(c.PollInterval, "POLL_INTERVAL")
	}

	if c.RedisAddress != "" {
		v.RequireRange(c.RedisDB, 0, 15, "REDIS_DB").
			RequirePositiveDuration(c.LockTTL, "LOCK_TTL")
	}

	if c.RateLimitEnabled {
		v.RequirePositive(c.RateLimitRPS, "RATE_LIMIT_RPS")
	}

	return v.Error()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for unparsable values so Validate reports them.
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv returns 0 for unparsable values so Validate reports them.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}
