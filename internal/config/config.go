package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	Token            string
	Owner            string
	FromBlock        uint64
	ToBlock          uint64
	BatchSize        uint64
	MaxRetries       int
	RetryBackoff     time.Duration
	MinConfirmations uint64
	PrivateKey       string
	GasLimit         uint64
	PgDSN            string
	Out              string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ALLOWANCES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(5000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("min-confirmations", uint64(1))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		Token:            v.GetString("token"),
		Owner:            v.GetString("owner"),
		FromBlock:        v.GetUint64("from"),
		ToBlock:          v.GetUint64("to"),
		BatchSize:        v.GetUint64("batch-size"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		MinConfirmations: v.GetUint64("min-confirmations"),
		PrivateKey:       v.GetString("private-key"),
		GasLimit:         v.GetUint64("gas-limit"),
		PgDSN:            v.GetString("pg-dsn"),
		Out:              v.GetString("out"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}
