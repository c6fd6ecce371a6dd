package config

// Default values.
const (
	DefaultDifficulty = 4
	DefaultReward     = 1.0
	DefaultRPCPort    = 8545
	DefaultRESTPort   = 5000
	DefaultArchiveMB  = 16
)

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Ledger: LedgerConfig{
			Difficulty: DefaultDifficulty,
			Reward:     DefaultReward,
			PoolSize:   0,
		},
		Mining: MiningConfig{
			ClearPolicy: "included",
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		REST: RESTConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    DefaultRESTPort,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Backend: "badger",
			CacheMB: DefaultArchiveMB,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
