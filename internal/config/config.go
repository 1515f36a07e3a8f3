package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ReportsConfig struct {
	DefaultEvents    []string
	ScheduleHour     int
	ScheduleMinute   int
	WorkerPollPeriod string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Reports     ReportsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Reports: ReportsConfig{
			DefaultEvents:    parseList(v.GetString("REPORTS_DEFAULT_EVENTS")),
			ScheduleHour:     v.GetInt("REPORTS_SCHEDULE_HOUR"),
			ScheduleMinute:   v.GetInt("REPORTS_SCHEDULE_MINUTE"),
			WorkerPollPeriod: v.GetString("REPORTS_WORKER_POLL_PERIOD"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7091
	}
	if len(cfg.Reports.DefaultEvents) == 0 {
		cfg.Reports.DefaultEvents = []string{"ACC", "ACD", "DMS", "LMP"}
	}
	if cfg.Reports.ScheduleHour == 0 && !v.IsSet("REPORTS_SCHEDULE_HOUR") {
		cfg.Reports.ScheduleHour = 1
	}
	if cfg.Reports.WorkerPollPeriod == "" {
		cfg.Reports.WorkerPollPeriod = "1m"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Reports.ScheduleHour < 0 || cfg.Reports.ScheduleHour > 23 {
		return fmt.Errorf("REPORTS_SCHEDULE_HOUR must be within 0..23")
	}
	if cfg.Reports.ScheduleMinute < 0 || cfg.Reports.ScheduleMinute > 59 {
		return fmt.Errorf("REPORTS_SCHEDULE_MINUTE must be within 0..59")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
