// Package config provides configuration management for the schemamap CLI.
//
// Defaults and validation rules are shared with internal/config; this
// package layers the config file, environment and command-line flags on top.
package config

import (
	sharedcfg "github.com/leapstack-labs/schemamap/internal/config"
)

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	OnError      string `koanf:"on_error"`
	MetricsFile  string `koanf:"metrics_file"`
	HistoryLimit int    `koanf:"history_limit"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile    = sharedcfg.DefaultStateFile
	DefaultOutput       = sharedcfg.DefaultOutput
	DefaultOnError      = sharedcfg.DefaultOnError
	DefaultHistoryLimit = sharedcfg.DefaultHistoryLimit
)

// Default returns a Config holding only default values.
func Default() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		OnError:      DefaultOnError,
		HistoryLimit: DefaultHistoryLimit,
	}
}
