package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"REGISTRY_BACKEND", "AWS_REGION", "AWS_ACCOUNT_ID", "EVENT_BUS_NAME",
	"RULE_PREFIX", "FUNCTION_PREFIX", "RESOLVER", "REGISTRY_TIMEOUT", "REGISTRY_RPS",
	"SCHEDULE_FILE", "TIMEZONE", "FIRE_TIME", "WORKERS",
	"DATABASE_PATH", "POLL_INTERVAL",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "LOCK_TTL",
	"GITHUB_WEBHOOK_SECRET", "EVENT_LABEL", "REPORT_TOPIC_ARN",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPS",
}

func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
}

func validEventBridgeConfig(t *testing.T) *Config {
	t.Helper()
	clearTestEnvVars(t)
	t.Setenv("AWS_REGION", "ap-northeast-2")
	t.Setenv("AWS_ACCOUNT_ID", "123456789012")
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	config := Load()

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, BackendEventBridge, config.RegistryBackend)
	assert.Equal(t, "workflow-lang", config.RulePrefix)
	assert.Equal(t, "workflow-lang", config.FunctionPrefix)
	assert.Equal(t, ResolverStatic, config.Resolver)
	assert.Equal(t, "Asia/Seoul", config.Timezone)
	assert.Equal(t, "09:00", config.FireTime)
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, 10*time.Second, config.RegistryTimeout)
	assert.Equal(t, "./dday_scheduler.db", config.DatabasePath)
	assert.Equal(t, "", config.RedisAddress)
	assert.Equal(t, "event", config.EventLabel)
	assert.True(t, config.RateLimitEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REGISTRY_BACKEND", "local")
	t.Setenv("WORKERS", "8")
	t.Setenv("POLL_INTERVAL", "15s")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	config := Load()

	assert.Equal(t, 9090, config.Port)
	assert.True(t, config.UsesLocalBackend())
	assert.Equal(t, 8, config.Workers)
	assert.Equal(t, 15*time.Second, config.PollInterval)
	assert.False(t, config.RateLimitEnabled)
}

func TestValidate_Valid(t *testing.T) {
	config := validEventBridgeConfig(t)
	require.NoError(t, config.Validate())

	loc, err := config.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

func TestValidate_LocalBackendNeedsNoAWS(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("REGISTRY_BACKEND", "local")

	assert.NoError(t, Load().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT must be between 1 and 65535"},
		{"unknown backend", func(c *Config) { c.RegistryBackend = "dynamo" }, "REGISTRY_BACKEND must be one of"},
		{"missing region", func(c *Config) { c.AWSRegion = "" }, "AWS_REGION is required"},
		{"bad account", func(c *Config) { c.AWSAccountID = "1234" }, "AWS_ACCOUNT_ID must be a 12 digit account id"},
		{"bad fire time", func(c *Config) { c.FireTime = "9am" }, "FIRE_TIME must be a 24h HH:MM time"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "Mars/Olympus"},
		{"bad prefix", func(c *Config) { c.RulePrefix = "workflow lang" }, "RULE_PREFIX must be letters, digits and hyphens"},
		{"unparsable timeout", func(c *Config) { c.RegistryTimeout = 0 }, "REGISTRY_TIMEOUT must be a positive duration"},
		{"redis db", func(c *Config) { c.RedisAddress = "localhost:6379"; c.RedisDB = 16 }, "REDIS_DB must be between 0 and 15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validEventBridgeConfig(t)
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_LookupResolverSkipsAccount(t *testing.T) {
	config := validEventBridgeConfig(t)
	config.Resolver = ResolverLookup
	config.AWSAccountID = ""

	assert.NoError(t, config.Validate())
}

func TestGetIntEnv_Invalid(t *testing.T) {
	t.Setenv("WORKERS", "many")
	assert.Equal(t, -1, getIntEnv("WORKERS", 4))
}
