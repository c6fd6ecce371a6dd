package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Version is the node version string.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string

	// Ledger
	Difficulty  int
	Reward      float64
	PoolSize    int
	ClearPolicy string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed []string
	RPCCORS    []string

	// REST
	REST     bool
	RESTAddr string
	RESTPort int
	RESTCORS []string

	// Archive
	Archive        bool
	ArchiveBackend string
	ArchiveCache   int

	// Metrics
	Metrics bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	fs *pflag.FlagSet
}

// Changed reports whether the named flag was set explicitly.
func (f *Flags) Changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// NewFlagSet returns the node flag set bound to f.
func NewFlagSet(f *Flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("powledgerd", pflag.ContinueOnError)
	fs.SortFlags = false

	// Commands
	fs.BoolVarP(&f.Help, "help", "h", false, "Show help message")
	fs.BoolVarP(&f.Version, "version", "v", false, "Show version information")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVarP(&f.Config, "config", "c", "", "Config file path (default: <datadir>/powledger.conf)")

	// Ledger
	fs.IntVarP(&f.Difficulty, "difficulty", "d", DefaultDifficulty, "Leading hex zeros required of block hashes (0-64)")
	fs.Float64Var(&f.Reward, "reward", DefaultReward, "Amount credited to the miner of each block")
	fs.IntVar(&f.PoolSize, "poolsize", 0, "Maximum pending transactions (0 = unbounded)")
	fs.StringVar(&f.ClearPolicy, "clear-policy", "", "Pool retirement on seal: included or all")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable JSON-RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringSliceVar(&f.RPCAllowed, "rpc-allowed", nil, "Allowed IPs for RPC (comma-separated)")
	fs.StringSliceVar(&f.RPCCORS, "rpc-cors", nil, "Allowed CORS origins for RPC (comma-separated)")

	// REST
	fs.BoolVar(&f.REST, "rest", true, "Enable REST server")
	fs.StringVar(&f.RESTAddr, "rest-addr", "", "REST listen address")
	fs.IntVar(&f.RESTPort, "rest-port", 0, "REST listen port")
	fs.StringSliceVar(&f.RESTCORS, "rest-cors", nil, "Allowed CORS origins for REST (comma-separated)")

	// Archive
	fs.BoolVar(&f.Archive, "archive", true, "Archive sealed blocks")
	fs.StringVar(&f.ArchiveBackend, "archive-backend", "", "Archive storage: memory or badger")
	fs.IntVar(&f.ArchiveCache, "archive-cache", 0, "Archive read cache in MiB")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", true, "Serve Prometheus metrics on the REST server")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	f.fs = fs
	return fs
}

// ParseFlags parses command-line arguments (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := NewFlagSet(f)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			f.Help = true
			return f, nil
		}
		return nil, err
	}
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies explicitly set command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Ledger
	if f.Changed("difficulty") {
		cfg.Ledger.Difficulty = f.Difficulty
	}
	if f.Changed("reward") {
		cfg.Ledger.Reward = f.Reward
	}
	if f.Changed("poolsize") {
		cfg.Ledger.PoolSize = f.PoolSize
	}
	if f.ClearPolicy != "" {
		cfg.Mining.ClearPolicy = f.ClearPolicy
	}

	// RPC
	if f.Changed("rpc") {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if len(f.RPCAllowed) > 0 {
		cfg.RPC.AllowedIPs = f.RPCAllowed
	}
	if len(f.RPCCORS) > 0 {
		cfg.RPC.CORSOrigins = f.RPCCORS
	}

	// REST
	if f.Changed("rest") {
		cfg.REST.Enabled = f.REST
	}
	if f.RESTAddr != "" {
		cfg.REST.Addr = f.RESTAddr
	}
	if f.RESTPort != 0 {
		cfg.REST.Port = f.RESTPort
	}
	if len(f.RESTCORS) > 0 {
		cfg.REST.CORSOrigins = f.RESTCORS
	}

	// Archive
	if f.Changed("archive") {
		cfg.Archive.Enabled = f.Archive
	}
	if f.ArchiveBackend != "" {
		cfg.Archive.Backend = f.ArchiveBackend
	}
	if f.ArchiveCache != 0 {
		cfg.Archive.CacheMB = f.ArchiveCache
	}

	// Metrics
	if f.Changed("metrics") {
		cfg.Metrics.Enabled = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.Changed("log-json") {
		cfg.Log.JSON = f.LogJSON
	}
}

// PrintUsage writes the node help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `powledger - proof-of-work ledger with an external mining job coordinator

Usage:
  powledgerd [options]
  powledgerd --help

Options:
`)
	f := &Flags{}
	fs := NewFlagSet(f)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprint(w, `
Examples:
  # Start with the default difficulty (4)
  powledgerd

  # Fast local testing
  powledgerd --difficulty=2 --archive-backend=memory

  # Keep late transactions out of the next block's pool retirement
  powledgerd --clear-policy=included

Note:
  Difficulty is fixed for the lifetime of the process. The ledger always
  starts from a freshly mined genesis block.
`)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	// Handle help/version
	if flags.Help {
		PrintUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("powledgerd version " + Version)
		os.Exit(0)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	cfg, err = LoadFromFile(cfg, configPath)
	if err != nil {
		return nil, nil, err
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// LoadFromFile applies the config file at path on top of cfg.
func LoadFromFile(cfg *Config, path string) (*Config, error) {
	fileValues, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. This is idempotent and safe to call on
// every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.LogsDir(),
		cfg.ArchiveDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
