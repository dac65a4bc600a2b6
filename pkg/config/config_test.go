package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stockwatch/stock-ticker/pkg/config"
)

// clearEnv unsets keys for the duration of a test so defaults are really
// defaults, restoring any pre-existing values afterwards.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			key, val := key, val
			t.Cleanup(func() { os.Setenv(key, val) })
			os.Unsetenv(key)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t,
		"MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION",
		"WATCH_SYMBOLS", "MUTATE_OPS_PER_SEC",
		"DISPLAY_HIGHLIGHT_TTL", "DISPLAY_REDRAW_INTERVAL")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Mongo.Database != "market" || cfg.Mongo.Collection != "stocksymbols" {
		t.Errorf("Unexpected mongo defaults: %+v", cfg.Mongo)
	}
	if len(cfg.Watch.Symbols) != 13 {
		t.Errorf("Expected the 13-symbol default portfolio, got %v", cfg.Watch.Symbols)
	}
	if cfg.Mutate.OpsPerSec != 16 {
		t.Errorf("Expected 16 ops/sec default, got %d", cfg.Mutate.OpsPerSec)
	}
	if cfg.Display.HighlightTTL != 2*time.Second {
		t.Errorf("Expected 2s highlight TTL, got %v", cfg.Display.HighlightTTL)
	}
	if cfg.Display.RedrawInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms redraw interval, got %v", cfg.Display.RedrawInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MONGO_DATABASE", "testdb")
	t.Setenv("WATCH_SYMBOLS", "MDB,ORCL")
	t.Setenv("MUTATE_OPS_PER_SEC", "32")
	t.Setenv("DISPLAY_HIGHLIGHT_TTL", "3s")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Mongo.Database != "testdb" {
		t.Errorf("Expected database override, got %q", cfg.Mongo.Database)
	}
	if len(cfg.Watch.Symbols) != 2 || cfg.Watch.Symbols[0] != "MDB" {
		t.Errorf("Expected the comma-separated symbol override, got %v", cfg.Watch.Symbols)
	}
	if cfg.Mutate.OpsPerSec != 32 {
		t.Errorf("Expected 32 ops/sec, got %d", cfg.Mutate.OpsPerSec)
	}
	if cfg.Display.HighlightTTL != 3*time.Second {
		t.Errorf("Expected 3s highlight TTL, got %v", cfg.Display.HighlightTTL)
	}
}

func TestLoadConfig_RejectsOverfullOpMix(t *testing.T) {
	t.Setenv("MUTATE_INSERT_PCT", "0.6")
	t.Setenv("MUTATE_DELETE_PCT", "0.5")

	if _, err := config.LoadConfig(); err == nil {
		t.Fatal("Expected an op mix with no room for updates to be rejected")
	}
}

func TestLoadConfig_RejectsZeroRate(t *testing.T) {
	t.Setenv("MUTATE_OPS_PER_SEC", "0")

	if _, err := config.LoadConfig(); err == nil {
		t.Fatal("Expected a zero mutation rate to be rejected")
	}
}

func TestNewLogger_BuildsConfiguredLevel(t *testing.T) {
	logger, err := config.NewLogger(config.LoggerConfig{Level: "debug", Encoding: "console"})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	logger.Sync()
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "shout", Encoding: "console"}); err == nil {
		t.Fatal("Expected an invalid level to be rejected")
	}
}
