package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DBUrl        string
	RabbitMQUrl  string
	R2           R2Config
	GoogleApiKey string

	Model           string
	ExtractModel    string
	CreativityLevel float64
	TailorMode      string
	TailorAttempts  int
	Workers         int

	Port              string
	DashboardUsername string
	DashboardPassword string

	JobFetcher      string
	BrowserHeadless bool
}

// loadConfig reads the environment through getenv. Nothing is validated here
// beyond value parsing; each command calls require for the keys it needs.
func loadConfig(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Config{
		DBUrl:       getenv("DB_URL"),
		RabbitMQUrl: getenv("RABBITMQ_URL"),
		R2: R2Config{
			AccountID: getenv("R2_ACCCOUNT_ID"),
			Bucket:    getenv("R2_BUCKET"),
			AccessKey: getenv("R2_ACCESS_KEY"),
			SecretKey: getenv("R2_SECRET_KEY"),
		},
		GoogleApiKey:      getenv("GOOGLE_API_KEY"),
		Model:             envOr(getenv, "GEMINI_MODEL", "gemini-2.5-pro"),
		ExtractModel:      envOr(getenv, "GEMINI_EXTRACT_MODEL", "gemini-2.5-flash"),
		TailorMode:        strings.ToLower(envOr(getenv, "TAILOR_MODE", TailorModeCrew)),
		Port:              envOr(getenv, "PORT", "7860"),
		DashboardUsername: getenv("DASHBOARD_USERNAME"),
		DashboardPassword: getenv("DASHBOARD_PASSWORD"),
		JobFetcher:        strings.ToLower(envOr(getenv, "JOB_FETCHER", "http")),
	}

	var err error
	if cfg.CreativityLevel, err = strconv.ParseFloat(envOr(getenv, "CREATIVITY_LEVEL", "0.3"), 64); err != nil {
		return cfg, fmt.Errorf("invalid CREATIVITY_LEVEL: %w", err)
	}
	if cfg.TailorAttempts, err = strconv.Atoi(envOr(getenv, "TAILOR_ATTEMPTS", "2")); err != nil {
		return cfg, fmt.Errorf("invalid TAILOR_ATTEMPTS: %w", err)
	}
	if cfg.Workers, err = strconv.Atoi(envOr(getenv, "WORKERS", "3")); err != nil {
		return cfg, fmt.Errorf("invalid WORKERS: %w", err)
	}
	if cfg.BrowserHeadless, err = strconv.ParseBool(envOr(getenv, "BROWSER_HEADLESS", "true")); err != nil {
		return cfg, fmt.Errorf("invalid BROWSER_HEADLESS: %w", err)
	}

	if cfg.TailorAttempts < 1 {
		return cfg, fmt.Errorf("invalid TAILOR_ATTEMPTS: must be at least 1")
	}
	if cfg.Workers < 1 {
		return cfg, fmt.Errorf("invalid WORKERS: must be at least 1")
	}
	if cfg.TailorMode != TailorModeCrew && cfg.TailorMode != TailorModeSingle {
		return cfg, fmt.Errorf("invalid TAILOR_MODE %q: want %q or %q", cfg.TailorMode, TailorModeCrew, TailorModeSingle)
	}
	if cfg.JobFetcher != "http" && cfg.JobFetcher != "browser" {
		return cfg, fmt.Errorf("invalid JOB_FETCHER %q: want http or browser", cfg.JobFetcher)
	}
	return cfg, nil
}

// require fails on the first empty key among keys.
func (c Config) require(keys ...string) error {
	values := map[string]string{
		"DB_URL":         c.DBUrl,
		"RABBITMQ_URL":   c.RabbitMQUrl,
		"R2_ACCCOUNT_ID": c.R2.AccountID,
		"R2_BUCKET":      c.R2.Bucket,
		"R2_ACCESS_KEY":  c.R2.AccessKey,
		"R2_SECRET_KEY":  c.R2.SecretKey,
		"GOOGLE_API_KEY": c.GoogleApiKey,
	}
	for _, key := range keys {
		v, known := values[key]
		if !known {
			return fmt.Errorf("unknown config key %s", key)
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("empty %s in environment", key)
		}
	}
	return nil
}

var r2Keys = []string{"R2_ACCCOUNT_ID", "R2_BUCKET", "R2_ACCESS_KEY", "R2_SECRET_KEY"}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}
