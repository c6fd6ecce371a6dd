package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// LoadFile loads configuration values from a .conf file.
// A missing file yields an empty map.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
// Every malformed value is reported, not just the first.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs error
	for _, key := range keys {
		if err := setConfigValue(cfg, key, values[key]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config key %q: %w", key, err))
		}
	}
	return errs
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value

	// Ledger
	case "ledger.difficulty", "difficulty":
		return setInt(&cfg.Ledger.Difficulty, value)
	case "ledger.reward":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.Ledger.Reward = f
	case "ledger.poolsize":
		return setInt(&cfg.Ledger.PoolSize, value)

	// Mining
	case "mining.clear_policy":
		cfg.Mining.ClearPolicy = strings.ToLower(value)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		return setInt(&cfg.RPC.Port, value)
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// REST
	case "rest.enabled", "rest":
		cfg.REST.Enabled = parseBool(value)
	case "rest.addr":
		cfg.REST.Addr = value
	case "rest.port":
		return setInt(&cfg.REST.Port, value)
	case "rest.cors":
		cfg.REST.CORSOrigins = parseStringList(value)

	// Archive
	case "archive.enabled", "archive":
		cfg.Archive.Enabled = parseBool(value)
	case "archive.backend":
		cfg.Archive.Backend = strings.ToLower(value)
	case "archive.cache":
		return setInt(&cfg.Archive.CacheMB, value)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	d := Default()
	content := `# powledger node configuration
#
# Format: key = value. Command-line flags override these settings.

# Data directory (default: ~/.powledger)
# datadir = ~/.powledger

# ============================================================================
# Ledger
# ============================================================================

# Leading zero hex characters required of every block hash (0-64).
# Fixed for the lifetime of the process.
ledger.difficulty = ` + strconv.Itoa(d.Ledger.Difficulty) + `

# Amount credited to the miner of each block.
ledger.reward = ` + strconv.FormatFloat(d.Ledger.Reward, 'f', -1, 64) + `

# Maximum pending transactions (0 = unbounded).
# ledger.poolsize = 0

# ============================================================================
# Mining
# ============================================================================

# Which pending transactions are dropped when a block is sealed:
#   included - only those the sealed block contains (late arrivals stay queued)
#   all      - the whole pool
mining.clear_policy = ` + d.Mining.ClearPolicy + `

# ============================================================================
# JSON-RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(d.RPC.Port) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# ============================================================================
# REST Server
# ============================================================================

rest.enabled = true
rest.addr = 127.0.0.1
rest.port = ` + strconv.Itoa(d.REST.Port) + `
# rest.cors = *

# ============================================================================
# Block Archive
# ============================================================================

# Every sealed block is written here, namespaced per run. Nothing is
# reloaded on restart.
archive.enabled = true
# memory or badger
archive.backend = badger
# Read cache size in MiB
archive.cache = ` + strconv.Itoa(d.Archive.CacheMB) + `

# ============================================================================
# Metrics
# ============================================================================

# Serve Prometheus metrics at /metrics on the REST server.
metrics.enabled = true

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
