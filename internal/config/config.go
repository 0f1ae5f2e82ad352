package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	FrontendURL   string        `mapstructure:"frontend_url"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	DBPath        string        `mapstructure:"db_path"`
	MediaPath     string        `mapstructure:"media_path"`
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	RingTimeout   time.Duration `mapstructure:"ring_timeout"`
	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	SenderEmail   string        `mapstructure:"sender_email"`
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
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("db_path", "./pigeon.db")
	v.SetDefault("media_path", "./media")
	v.SetDefault("typing_timeout", "3s")
	v.SetDefault("ring_timeout", "30s")

	v.SetEnvPrefix("pigeon")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
