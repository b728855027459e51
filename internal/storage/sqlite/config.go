package sqlite

import (
	"fmt"

	"dday-scheduler/internal/common/validation"
)

// Config configures the SQLite store
type Config struct {
	DatabasePath string
	// BusyTimeoutMS is how long a writer waits on a locked database
	BusyTimeoutMS int
}

// Validate checks the configuration
func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("sqlite")
	v.RequireString(c.DatabasePath, "database_path")
	v.RequireRange(c.BusyTimeoutMS, 0, 60000, "busy_timeout_ms")
	return v.Error()
}

// DSN returns the go-sqlite3 connection string
func (c *Config) DSN() string {
	timeout := c.BusyTimeoutMS
	if timeout == 0 {
		timeout = 5000
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", c.DatabasePath, timeout)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  "./dday_scheduler.db",
		BusyTimeoutMS: 5000,
	}
}
