package config

import (
	"errors"
	"fmt"

	"github.com/rcliao/recall/internal/cron"
	"github.com/rcliao/recall/internal/store"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("config: db_path is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", c.Log.Format))
	}

	if c.Store.BusyTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("config: store.busy_timeout_ms must not be negative, got %d", c.Store.BusyTimeoutMS))
	}

	if k := c.Search.DefaultTopK; k < 1 || k > store.MaxTopK {
		errs = append(errs, fmt.Errorf("config: search.default_top_k must be between 1 and %d, got %d", store.MaxTopK, k))
	}

	if c.Purge.Enabled {
		if err := cron.ValidateSchedule(c.Purge.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: purge.schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}
