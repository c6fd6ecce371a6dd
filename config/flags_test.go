package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{
		"-d", "2",
		"--reward=3",
		"--clear-policy=all",
		"--rpc=false",
		"--rest-port", "6000",
		"--rpc-allowed=1.2.3.4,5.6.7.8",
		"--log-json",
		"extra",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := Default()
	ApplyFlags(cfg, f)

	if cfg.Ledger.Difficulty != 2 || cfg.Ledger.Reward != 3 {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Mining.ClearPolicy != "all" {
		t.Errorf("clear policy = %s", cfg.Mining.ClearPolicy)
	}
	if cfg.RPC.Enabled {
		t.Error("--rpc=false not applied")
	}
	if cfg.REST.Port != 6000 {
		t.Errorf("rest port = %d", cfg.REST.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[0] != "1.2.3.4" {
		t.Errorf("rpc allowed = %v", cfg.RPC.AllowedIPs)
	}
	if !cfg.Log.JSON {
		t.Error("--log-json not applied")
	}
	if len(f.Args) != 1 || f.Args[0] != "extra" {
		t.Errorf("Args = %v", f.Args)
	}
}

func TestApplyFlags_UnsetKeepsFileValues(t *testing.T) {
	f, err := ParseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Ledger.Difficulty = 1 // as if from the config file
	cfg.RPC.Enabled = false

	ApplyFlags(cfg, f)

	if cfg.Ledger.Difficulty != 1 {
		t.Errorf("difficulty default flag overrode file value: %d", cfg.Ledger.Difficulty)
	}
	if cfg.RPC.Enabled {
		t.Error("rpc default flag overrode file value")
	}
}

func TestApplyFlags_DifficultyZero(t *testing.T) {
	f, _ := ParseFlags([]string{"--difficulty=0"})
	cfg := Default()
	ApplyFlags(cfg, f)
	if cfg.Ledger.Difficulty != 0 {
		t.Errorf("difficulty = %d, want 0", cfg.Ledger.Difficulty)
	}
}

func TestParseFlags_Help(t *testing.T) {
	f, err := ParseFlags([]string{"--help"})
	if err != nil || !f.Help {
		t.Fatalf("ParseFlags(--help) = %+v, %v", f, err)
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := ParseFlags([]string{"--p2p"}); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	conf := "ledger.difficulty = 3\nledger.reward = 7\narchive.backend = memory\n"
	if err := os.WriteFile(filepath.Join(dir, "powledger.conf"), []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load([]string{"--datadir", dir, "--difficulty=1"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.Difficulty != 1 {
		t.Errorf("flag should win: difficulty = %d", cfg.Ledger.Difficulty)
	}
	if cfg.Ledger.Reward != 7 {
		t.Errorf("file should win over default: reward = %v", cfg.Ledger.Reward)
	}
	if cfg.Archive.Backend != "memory" {
		t.Errorf("archive backend = %s", cfg.Archive.Backend)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Load([]string{"--datadir", dir, "--difficulty=80"})
	if err == nil || !strings.Contains(err.Error(), "ledger.difficulty") {
		t.Errorf("Load() = %v, want difficulty error", err)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, want := range []string{"--difficulty", "--clear-policy", "--archive-backend"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("usage missing %s", want)
		}
	}
}
