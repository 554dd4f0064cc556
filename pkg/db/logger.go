package db

import (
	"gorm.io/gorm/logger"
)

// NewLogger maps the application log-level flag onto gorm's logger so SQL
// tracing follows the same knob as the rest of the process.
func NewLogger(level string) logger.Interface {
	mode := logger.Silent
	switch level {
	case "trace", "debug":
		mode = logger.Info
	case "info":
		mode = logger.Warn
	case "warn", "error":
		mode = logger.Error
	}
	return logger.Default.LogMode(mode)
}
