// Package config loads service configuration from defaults, an optional YAML
// file and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Schedule gates the per-minute scheduling pass.
type Schedule struct {
	StartHour   int   `yaml:"start_hour"`
	EndHour     int   `yaml:"end_hour"`
	WorkingDays []int `yaml:"working_days"`

	// MorningHour is the single hour in which Medium-priority followups
	// are eligible.
	MorningHour int `yaml:"morning_hour"`
}

// InWorkingHours reports whether the scheduling pass should run at all.
func (s Schedule) InWorkingHours(t time.Time) bool {
	day := int(t.Weekday())
	workingDay := false
	for _, d := range s.WorkingDays {
		if d == day {
			workingDay = true
			break
		}
	}
	if !workingDay {
		return false
	}
	hour := t.Hour()
	return hour >= s.StartHour && hour < s.EndHour
}

type Config struct {
	Port string `yaml:"port"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`

	SlackToken   string `yaml:"slack_token"`
	SlackAPIBase string `yaml:"slack_api_base"`

	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromName       string `yaml:"from_name"`
	FromAddress    string `yaml:"from_address"`

	AdminUserID string `yaml:"admin_user_id"`
	AdminEmail  string `yaml:"admin_email"`

	Schedule Schedule `yaml:"schedule"`

	DailyPingLimit  int           `yaml:"daily_ping_limit"`
	PersistInterval time.Duration `yaml:"persist_interval"`
	DeliveryStagger time.Duration `yaml:"delivery_stagger"`
}

func defaults() *Config {
	return &Config{
		Port:      "8080",
		RedisAddr: "localhost:6379",
		Schedule: Schedule{
			StartHour:   9,
			EndHour:     18,
			WorkingDays: []int{1, 2, 3, 4, 5},
			MorningHour: 9,
		},
		DailyPingLimit:  10,
		PersistInterval: 30 * time.Second,
		DeliveryStagger: 1500 * time.Millisecond,
	}
}

// Load builds the configuration. path may be empty or point at a missing
// file; env vars always win over file values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	overlayEnv(cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setIfPresent(&cfg.Port, "PORT")
	setIfPresent(&cfg.PostgresDSN, "POSTGRES_DSN")
	setIfPresent(&cfg.RedisAddr, "REDIS_ADDR")
	setIfPresent(&cfg.SlackToken, "SLACK_BOT_TOKEN")
	setIfPresent(&cfg.SlackAPIBase, "SLACK_API_BASE")
	setIfPresent(&cfg.SendGridAPIKey, "SENDGRID_API_KEY")
	setIfPresent(&cfg.FromName, "FROM_NAME")
	setIfPresent(&cfg.FromAddress, "FROM_ADDRESS")
	setIfPresent(&cfg.AdminUserID, "ADMIN_USER_ID")
	setIfPresent(&cfg.AdminEmail, "ADMIN_EMAIL")
}

// Validate checks the settings serve cannot run without.
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if c.SlackToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	return nil
}
