package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Mutate   MutateConfig   `mapstructure:"mutate"`
	Populate PopulateConfig `mapstructure:"populate"`
	Display  DisplayConfig  `mapstructure:"display"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type WatchConfig struct {
	Symbols []string `mapstructure:"symbols"`
}

type MutateConfig struct {
	OpsPerSec    int     `mapstructure:"ops_per_sec"`
	WatchedShare float64 `mapstructure:"watched_share"` // fraction of updates aimed at watched symbols
	InsertPct    float64 `mapstructure:"insert_pct"`
	DeletePct    float64 `mapstructure:"delete_pct"`
}

type PopulateConfig struct {
	BackgroundCount int `mapstructure:"background_count"`
	BatchSize       int `mapstructure:"batch_size"`
}

type DisplayConfig struct {
	HighlightTTL   time.Duration `mapstructure:"highlight_ttl"`
	RedrawInterval time.Duration `mapstructure:"redraw_interval"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "console" or "json"
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	// This ensures variables like MONGO_URI are available as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	// Change streams need a replica set, so the default URI names one.
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "market")
	v.SetDefault("mongo.collection", "stocksymbols")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("watch.symbols", models.DefaultWatched)

	v.SetDefault("mutate.ops_per_sec", 16)
	v.SetDefault("mutate.watched_share", 0.3)
	v.SetDefault("mutate.insert_pct", 0.1)
	v.SetDefault("mutate.delete_pct", 0.1)

	v.SetDefault("populate.background_count", 20000)
	v.SetDefault("populate.batch_size", 1000)

	v.SetDefault("display.highlight_ttl", 2*time.Second)
	v.SetDefault("display.redraw_interval", 250*time.Millisecond)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "mongo.uri" -> "MONGO_URI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (MONGO_URI) to nested structs (Mongo.URI)
	bindEnv(v, "mongo.uri", "mongo.database", "mongo.collection", "mongo.connect_timeout")
	bindEnv(v, "watch.symbols")
	bindEnv(v, "mutate.ops_per_sec", "mutate.watched_share", "mutate.insert_pct", "mutate.delete_pct")
	bindEnv(v, "populate.background_count", "populate.batch_size")
	bindEnv(v, "display.highlight_ttl", "display.redraw_interval")
	bindEnv(v, "logger.level", "logger.encoding")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo uri cannot be empty")
	}
	if len(cfg.Watch.Symbols) == 0 {
		return nil, fmt.Errorf("watch symbols cannot be empty")
	}
	if cfg.Mutate.OpsPerSec < 1 {
		return nil, fmt.Errorf("mutate ops_per_sec must be at least 1, got %d", cfg.Mutate.OpsPerSec)
	}
	if cfg.Mutate.InsertPct+cfg.Mutate.DeletePct >= 1.0 {
		return nil, fmt.Errorf("insert_pct + delete_pct must leave room for updates, got %.2f", cfg.Mutate.InsertPct+cfg.Mutate.DeletePct)
	}
	if cfg.Display.HighlightTTL <= 0 || cfg.Display.RedrawInterval <= 0 {
		return nil, fmt.Errorf("display intervals must be positive")
	}

	return &cfg, nil
}

// NewLogger builds the shared zap logger. Log output goes to stderr so the
// renderers own stdout.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = cfg.Encoding
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Encoding == "console" {
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("unable to build logger: %v", err)
	}
	return logger, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
