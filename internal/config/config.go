package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	ReadLimit  int64  `mapstructure:"read_limit"`
	Secret     string `mapstructure:"secret"`

	LivenessTimeout    time.Duration `mapstructure:"liveness_timeout"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	EmptyEvictionDelay time.Duration `mapstructure:"empty_eviction_delay"`
	SweepPeriod        time.Duration `mapstructure:"sweep_period"`

	RedisURL   string `mapstructure:"redis_url"`
	InstanceID string `mapstructure:"instance_id"`

	MessageRateLimit  int           `mapstructure:"message_rate_limit"`
	MessageRateWindow time.Duration `mapstructure:"message_rate_window"`

	STUNServers    []string `mapstructure:"stun_servers"`
	TURNServer     string   `mapstructure:"turn_server"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`
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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("liveness_timeout", "60s")
	v.SetDefault("heartbeat_interval", "25s")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("empty_eviction_delay", "5m")
	v.SetDefault("sweep_period", "1h")
	v.SetDefault("message_rate_limit", 60)
	v.SetDefault("message_rate_window", "10s")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = host
	}
	return &cfg, nil
}
