package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Ledger.Difficulty != 4 || cfg.Ledger.Reward != 1 {
		t.Errorf("ledger defaults = %+v", cfg.Ledger)
	}
	if cfg.Mining.ClearPolicy != "included" {
		t.Errorf("clear policy default = %s", cfg.Mining.ClearPolicy)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powledger.conf")
	content := `# comment
ledger.difficulty = 2
ledger.reward = 2.5
mining.clear_policy = "ALL"
rpc.allowed = 127.0.0.1, 10.0.0.1
rest.port = 5001
archive.backend = memory
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Ledger.Difficulty != 2 || cfg.Ledger.Reward != 2.5 {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Mining.ClearPolicy != "all" {
		t.Errorf("clear policy = %q", cfg.Mining.ClearPolicy)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.1" {
		t.Errorf("rpc.allowed = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.REST.Port != 5001 || cfg.Archive.Backend != "memory" {
		t.Errorf("rest.port=%d archive.backend=%s", cfg.REST.Port, cfg.Archive.Backend)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil || len(values) != 0 {
		t.Fatalf("missing file = %v, %v", values, err)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("ledger.difficulty\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for line without '='")
	}
}

func TestApplyFileConfig_ReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{
		"ledger.difficulty": "hard",
		"rpc.port":          "http",
		"log.level":         "debug",
	})
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("err = %T %v, want *multierror.Error", err, err)
	}
	if len(merr.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(merr.Errors), merr)
	}
	if cfg.Log.Level != "debug" {
		t.Error("valid keys should still apply")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"difficulty zero", func(c *Config) { c.Ledger.Difficulty = 0 }, ""},
		{"difficulty 64", func(c *Config) { c.Ledger.Difficulty = 64 }, ""},
		{"difficulty negative", func(c *Config) { c.Ledger.Difficulty = -1 }, "ledger.difficulty"},
		{"difficulty 65", func(c *Config) { c.Ledger.Difficulty = 65 }, "ledger.difficulty"},
		{"bad policy", func(c *Config) { c.Mining.ClearPolicy = "some" }, "mining.clear_policy"},
		{"padded policy", func(c *Config) { c.Mining.ClearPolicy = " All " }, ""},
		{"bad rpc port", func(c *Config) { c.RPC.Port = 70000 }, "rpc.port"},
		{"port clash", func(c *Config) { c.REST.Port = c.RPC.Port }, "same address"},
		{"bad backend", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"backend ignored when disabled", func(c *Config) { c.Archive.Enabled = false; c.Archive.Backend = "s3" }, ""},
		{"negative pool", func(c *Config) { c.Ledger.PoolSize = -1 }, "ledger.poolsize"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Difficulty = 99
	cfg.RPC.Port = -1
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	merr, ok := err.(*multierror.Error)
	if !ok || len(merr.Errors) != 3 {
		t.Fatalf("Validate() = %v, want 3 accumulated errors", err)
	}
}

func TestEnsureDataDirs(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "node")

	if err := EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.LogsDir(), cfg.ArchiveDir()} {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}

	// The generated file must parse back into the defaults.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatalf("LoadFile(default): %v", err)
	}
	loaded := Default()
	loaded.DataDir = cfg.DataDir
	if err := ApplyFileConfig(loaded, values); err != nil {
		t.Fatalf("ApplyFileConfig(default): %v", err)
	}
	if err := Validate(loaded); err != nil {
		t.Errorf("default file invalid: %v", err)
	}
	if loaded.Ledger.Difficulty != DefaultDifficulty || loaded.Mining.ClearPolicy != "included" {
		t.Errorf("default file = %+v", loaded.Ledger)
	}

	// Idempotent.
	if err := EnsureDataDirs(cfg); err != nil {
		t.Errorf("second EnsureDataDirs: %v", err)
	}
}
