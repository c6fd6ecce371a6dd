package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MaxDifficulty is the largest meaningful difficulty: a hash has 64 hex digits.
const MaxDifficulty = 64

// Validate checks the configuration for operator mistakes.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	var errs *multierror.Error
	fail := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if cfg.DataDir == "" {
		fail("datadir must not be empty")
	}
	if cfg.Ledger.Difficulty < 0 || cfg.Ledger.Difficulty > MaxDifficulty {
		fail("ledger.difficulty must be in range [0, %d]", MaxDifficulty)
	}
	if math.IsNaN(cfg.Ledger.Reward) || math.IsInf(cfg.Ledger.Reward, 0) {
		fail("ledger.reward must be a finite number")
	}
	if cfg.Ledger.PoolSize < 0 {
		fail("ledger.poolsize must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Mining.ClearPolicy)) {
	case "", "included", "all":
	default:
		fail("mining.clear_policy must be included or all")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		fail("rpc.port must be in range [0, 65535]")
	}
	if cfg.REST.Port < 0 || cfg.REST.Port > 65535 {
		fail("rest.port must be in range [0, 65535]")
	}
	if cfg.RPC.Enabled && cfg.REST.Enabled && cfg.RPC.Port != 0 &&
		cfg.RPC.Port == cfg.REST.Port && cfg.RPC.Addr == cfg.REST.Addr {
		fail("rpc and rest cannot listen on the same address %s:%d", cfg.RPC.Addr, cfg.RPC.Port)
	}
	if cfg.Archive.Enabled {
		switch cfg.Archive.Backend {
		case "memory", "badger":
		default:
			fail("archive.backend must be memory or badger")
		}
		if cfg.Archive.CacheMB < 0 {
			fail("archive.cache must not be negative")
		}
	}
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		fail("log.level must be trace, debug, info, warn or error")
	}

	return errs.ErrorOrNil()
}
