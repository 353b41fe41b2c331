package config

// Default configuration values.
const (
	DefaultStateFile    = ".schemamap/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultOnError      = "abort"
	DefaultHistoryLimit = 20
)

// Defaults returns the default value of every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"state_path":    DefaultStateFile,
		"verbose":       false,
		"output":        DefaultOutput,
		"on_error":      DefaultOnError,
		"metrics_file":  "",
		"history_limit": DefaultHistoryLimit,
	}
}
