package config

// DefaultWorkers is the worker pool size used when no config sets one.
const DefaultWorkers = 4

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:     DefaultWorkers,
		HistoryPath: ".teakit/history.db",
		TUI:         true,
		Vars:        make(map[string]string),
	}
}
