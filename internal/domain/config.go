package domain

// Config carries the CLI's runtime settings.
type Config struct {
	// StoreDir is the directory holding the cache database.
	StoreDir string `toml:"store_dir" mapstructure:"store_dir"`

	// Passphrase enables encryption at rest when non-empty.
	Passphrase string `toml:"passphrase" mapstructure:"passphrase"`

	// LogLevel is a zerolog level name (trace, debug, info, ...).
	LogLevel string `toml:"log_level" mapstructure:"log_level"`
}
