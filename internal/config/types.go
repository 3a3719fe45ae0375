package config

// Config is the top-level configuration.
type Config struct {
	Workers     int               `json:"workers"`      // Worker pool size for each run
	HistoryPath string            `json:"history_path"` // SQLite archive for finished runs
	TUI         bool              `json:"tui"`          // Render the live progress monitor
	Vars        map[string]string `json:"vars"`         // Variables shared by every pipeline
}

// fileConfig is the on-disk shape. Scalar fields are pointers so a file that
// omits a field leaves the lower-precedence value in place.
type fileConfig struct {
	Workers     *int              `json:"workers,omitempty"`
	HistoryPath *string           `json:"history_path,omitempty"`
	TUI         *bool             `json:"tui,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
}
