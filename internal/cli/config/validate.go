package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/schemamap/internal/config"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := intconfig.ValidateOutput(c.OutputFormat); err != nil {
		return err
	}
	if err := intconfig.ValidateOnError(c.OnError); err != nil {
		return err
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

// PersistenceEnabled reports whether runs are written to the state store.
// An empty state_path disables it.
func (c *Config) PersistenceEnabled() bool {
	return c.StatePath != ""
}
