// Package config defines service configuration and its loading.
//
// Configuration layers, lowest precedence first: built-in defaults, an
// optional YAML file named by RVUTRACK_CONFIG, then RVUTRACK_-prefixed
// environment variables.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8090".
	Addr string `koanf:"addr"`

	// MinStudySeconds is the minimum observation window for a study to be
	// recorded; shorter windows are discarded.
	MinStudySeconds int `koanf:"min_study_seconds"`

	// PlaceholderMarkers are accession values meaning "no study open".
	PlaceholderMarkers []string `koanf:"placeholder_markers"`

	// AccessionSalt salts accession hashing. Changing it changes every hash.
	AccessionSalt string `koanf:"accession_salt"`

	// GroupWindowSeconds bounds how close two completions must finish to
	// collapse into one multi-accession record.
	GroupWindowSeconds int `koanf:"group_window_seconds"`

	// TempFoldCutoffRVU is the combined RVU above which temporary records
	// fold into the next shift instead of being discarded.
	TempFoldCutoffRVU float64 `koanf:"temp_fold_cutoff_rvu"`

	// PaceEpsilonRVU is the band reported as on-pace.
	PaceEpsilonRVU float64 `koanf:"pace_epsilon_rvu"`

	// GoalSpanHours is the default ramp span for fixed-goal baselines.
	GoalSpanHours float64 `koanf:"goal_span_hours"`

	// Compensation parameters.
	CompRatePerRVU       float64 `koanf:"comp_rate_per_rvu"`
	CompBonusRatePerRVU  float64 `koanf:"comp_bonus_rate_per_rvu"`
	CompMonthlyTargetRVU float64 `koanf:"comp_monthly_target_rvu"`

	// RulesPath names the classification rules YAML file. Empty uses the
	// built-in table.
	RulesPath string `koanf:"rules_path"`

	// RulesHotReload watches the rules file and swaps the table on change.
	RulesHotReload bool `koanf:"rules_hot_reload"`

	// StorePath names the SQLite database file. Empty keeps everything in
	// memory.
	StorePath string `koanf:"store_path"`

	// PersistQueueSize bounds the in-memory record queue.
	PersistQueueSize int `koanf:"persist_queue_size"`

	// WriterCount sets the number of persistence writers.
	WriterCount int `koanf:"writer_count"`

	// PersistMaxAttempts bounds write retries per record.
	PersistMaxAttempts int `koanf:"persist_max_attempts"`

	// PersistBackoffBaseMS and PersistBackoffMaxMS shape the retry backoff.
	PersistBackoffBaseMS int `koanf:"persist_backoff_base_ms"`
	PersistBackoffMaxMS  int `koanf:"persist_backoff_max_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":8090",
		MinStudySeconds:      10,
		PlaceholderMarkers:   []string{"", "no accession"},
		AccessionSalt:        "rvutrack-local",
		GroupWindowSeconds:   60,
		TempFoldCutoffRVU:    5.0,
		PaceEpsilonRVU:       0.01,
		GoalSpanHours:        8,
		CompRatePerRVU:       40,
		CompBonusRatePerRVU:  15,
		CompMonthlyTargetRVU: 0,
		RulesPath:            "",
		RulesHotReload:       false,
		StorePath:            "",
		PersistQueueSize:     4096,
		WriterCount:          2,
		PersistMaxAttempts:   5,
		PersistBackoffBaseMS: 200,
		PersistBackoffMaxMS:  10_000,
	}
}
