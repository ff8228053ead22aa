package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	StaticPath       string        `mapstructure:"static_path"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	Secret           string        `mapstructure:"secret"`
	IdentityAttempts int           `mapstructure:"identity_attempts"`
	SlowConsumer     string        `mapstructure:"slow_consumer"`
	RateLimit        int           `mapstructure:"rate_limit"`
	RateInterval     time.Duration `mapstructure:"rate_interval"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	LogLevel         string        `mapstructure:"log_level"`
}

// PongWait is how long a connection may stay silent before it is dropped.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./public")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "roulette-dev-secret")
	v.SetDefault("identity_attempts", 8)
	v.SetDefault("slow_consumer", "kick")
	v.SetDefault("rate_limit", 0)
	v.SetDefault("rate_interval", "1s")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "info")
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("ROULETTE")
	v.AutomaticEnv()
	// PORT is the conventional override used by hosting platforms.
	if err := v.BindEnv("port", "PORT", "ROULETTE_PORT"); err != nil {
		return nil, fmt.Errorf("bind port env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Mode != "release" && c.Mode != "debug" {
		errs = append(errs, fmt.Errorf("mode %q must be release or debug", c.Mode))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, fmt.Errorf("ping_period must be positive"))
	}
	if c.WriteWait <= 0 {
		errs = append(errs, fmt.Errorf("write_wait must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer must be positive"))
	}
	if c.IdentityAttempts <= 0 {
		errs = append(errs, fmt.Errorf("identity_attempts must be positive"))
	}
	if c.SlowConsumer != "kick" && c.SlowConsumer != "drop" {
		errs = append(errs, fmt.Errorf("slow_consumer %q must be kick or drop", c.SlowConsumer))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateInterval <= 0 {
		errs = append(errs, fmt.Errorf("rate_interval must be positive when rate_limit is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
