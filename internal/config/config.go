// Package config loads MatchingEngine construction options from a YAML file
// with SAFEX_*-prefixed environment variable overrides, replacing the
// hardcoded constants the teacher scatters through cmd/ with the
// constructor-time configuration the design notes call for ("Global
// singletons removed": yield/gas/governor become config, never globals).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapped directly from YAML.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Server ServerConfig `mapstructure:"server"`
	API    APIConfig    `mapstructure:"api"`
	Native NativeConfig `mapstructure:"native"`
	Log    LogConfig    `mapstructure:"log"`
}

// EngineConfig tunes the matching core itself.
type EngineConfig struct {
	MaxMatches       int    `mapstructure:"max_matches"`
	SpreadBandPct    int    `mapstructure:"spread_band_pct"`
	FlatFeeNumerator int    `mapstructure:"flat_fee_numerator"`
	FeeRecipient     string `mapstructure:"fee_recipient"`
	Custody          string `mapstructure:"custody"`
}

// ServerConfig is the TCP order-entry listener.
type ServerConfig struct {
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	NWorkers int    `mapstructure:"n_workers"`
}

// APIConfig is the read-only HTTP/WS query surface.
type APIConfig struct {
	Address        string   `mapstructure:"address"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// NativeConfig names the recognized yield/gas/governor options for a
// wrapped-native bridging implementation. These never appear in the
// matching path itself; they're plumbed through at construction only.
type NativeConfig struct {
	Yield    string `mapstructure:"yield"`    // automatic | void | claimable
	Gas      string `mapstructure:"gas"`      // void | claimable
	Governor string `mapstructure:"governor"` // address, hex
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// Defaults match spec §6's stated constants.
func defaults(v *viper.Viper) {
	v.SetDefault("engine.max_matches", 20)
	v.SetDefault("engine.spread_band_pct", 10)
	v.SetDefault("engine.flat_fee_numerator", 10_000) // 1% of 1_000_000
	v.SetDefault("engine.fee_recipient", "0x0000000000000000000000000000000000000000")
	v.SetDefault("engine.custody", "0x0000000000000000000000000000000000000000")
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 9001)
	v.SetDefault("server.n_workers", 10)
	v.SetDefault("api.address", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("native.yield", "automatic")
	v.SetDefault("native.gas", "void")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads path (if it exists) and overlays SAFEX_*-prefixed env vars,
// e.g. SAFEX_ENGINE_MAX_MATCHES overrides engine.max_matches.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("SAFEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
