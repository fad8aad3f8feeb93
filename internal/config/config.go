package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string       `mapstructure:"database_url"`
	ServerPort  string       `mapstructure:"server_port"`
	JWTSecret   string       `mapstructure:"jwt_secret"`
	Temporal    TemporalCfg  `mapstructure:"temporal"`
	Email       EmailConfig  `mapstructure:"email"`
	Notify      NotifyConfig `mapstructure:"notify"`
}

type TemporalCfg struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type EmailConfig struct {
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// NoReply is the sender for digests and anything without a real author.
	NoReply string `mapstructure:"no_reply"`
	// Domain is the right-hand side of generated Message-ID headers.
	Domain string `mapstructure:"domain"`
}

type NotifyConfig struct {
	// BaseURL prefixes artifact links in mail footers and feeds.
	BaseURL string `mapstructure:"base_url"`
	// FireCron is the Temporal cron expression for the mailbox sweep.
	FireCron string `mapstructure:"fire_cron"`
	// QuiescentMinutes delays direct mail until a mailbox has been idle this
	// long, coalescing bursts of edits. Zero sends on the next sweep.
	QuiescentMinutes int `mapstructure:"quiescent_minutes"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Temporal.HostPort == "" {
		config.Temporal.HostPort = "localhost:7233"
	}
	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.Email.NoReply == "" {
		config.Email.NoReply = "noreply@openforge.dev"
	}
	if config.Email.Domain == "" {
		config.Email.Domain = "openforge.dev"
	}
	if config.Notify.BaseURL == "" {
		config.Notify.BaseURL = "https://openforge.dev"
	}
	if config.Notify.FireCron == "" {
		config.Notify.FireCron = "* * * * *"
	}

	return &config
}
