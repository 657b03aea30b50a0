// Package config loads server settings from YAML, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CINEMATCH"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	LogLevel       string        `mapstructure:"log_level"`
	PublicURL      string        `mapstructure:"public_url"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type SessionConfig struct {
	CodeAttempts     int           `mapstructure:"code_attempts"`
	LikeRateLimit    int           `mapstructure:"like_rate_limit"`
	LikeRateInterval time.Duration `mapstructure:"like_rate_interval"`
}

type StorageConfig struct {
	Driver         string `mapstructure:"driver"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	MongoURI       string `mapstructure:"mongo_uri"`
	MongoDatabase  string `mapstructure:"mongo_database"`
	DynamoTable    string `mapstructure:"dynamo_table"`
	DynamoRegion   string `mapstructure:"dynamo_region"`
	DynamoEndpoint string `mapstructure:"dynamo_endpoint"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"mode":           "mode",
	"port":           "port",
	"static-path":    "static_path",
	"log-level":      "log_level",
	"public-url":     "public_url",
	"storage-driver": "storage.driver",
	"sqlite-path":    "storage.sqlite_path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "")
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", "168h")

	v.SetDefault("session.code_attempts", 16)
	v.SetDefault("session.like_rate_limit", 30)
	v.SetDefault("session.like_rate_interval", "10s")

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.sqlite_path", "cinematch.db")
	v.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo_database", "cinematch")
	v.SetDefault("storage.dynamo_table", "cinematch-sessions")
	v.SetDefault("storage.dynamo_region", "us-east-1")
	v.SetDefault("storage.dynamo_endpoint", "")
}

// Load reads config/config.<CONFIG_ENV>.yaml (or the file named by the
// config flag), then CINEMATCH_* variables, then flags. A .env file in the
// working directory is loaded into the environment first when present.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	fileName := configFile(flags)
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}

func configFile(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	drivers := []string{DriverMemory, DriverSQLite, DriverMongo, DriverDynamoDB}
	if !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("unknown storage driver %q (want one of %s)", c.Storage.Driver, strings.Join(drivers, ", "))
	}
	if c.Storage.Driver == DriverSQLite && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		return errors.New("storage.sqlite_path is required for the sqlite driver")
	}
	if c.Session.CodeAttempts < 1 {
		return fmt.Errorf("session.code_attempts must be positive: %d", c.Session.CodeAttempts)
	}
	return nil
}
