// Package config handles application configuration.
//
// Precedence, lowest first: built-in defaults, the powledger.conf file in the
// data directory, command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds node runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Ledger parameters
	Ledger LedgerConfig

	// Mining job handling
	Mining MiningConfig

	// JSON-RPC server
	RPC RPCConfig

	// REST server
	REST RESTConfig

	// Sealed-block archive
	Archive ArchiveConfig

	// Prometheus metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// LedgerConfig holds the parameters fixed at ledger construction.
type LedgerConfig struct {
	Difficulty int     `conf:"ledger.difficulty"` // Leading hex zeros, 0..64.
	Reward     float64 `conf:"ledger.reward"`     // Amount credited per block.
	PoolSize   int     `conf:"ledger.poolsize"`   // Max pending transactions (0 = unbounded).
}

// MiningConfig holds job coordination settings.
type MiningConfig struct {
	ClearPolicy string `conf:"mining.clear_policy"` // included or all.
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// RESTConfig holds REST server settings.
type RESTConfig struct {
	Enabled     bool     `conf:"rest.enabled"`
	Addr        string   `conf:"rest.addr"`
	Port        int      `conf:"rest.port"`
	CORSOrigins []string `conf:"rest.cors"`
}

// ArchiveConfig holds sealed-block archive settings.
type ArchiveConfig struct {
	Enabled bool   `conf:"archive.enabled"`
	Backend string `conf:"archive.backend"` // memory or badger.
	CacheMB int    `conf:"archive.cache"`   // Read cache size in MiB.
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.powledger
//	macOS:   ~/Library/Application Support/Powledger
//	Windows: %APPDATA%\Powledger
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".powledger"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Powledger")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Powledger")
		}
		return filepath.Join(home, "AppData", "Roaming", "Powledger")
	default:
		return filepath.Join(home, ".powledger")
	}
}

// ArchiveDir returns the Badger archive directory.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "powledger.conf")
}
