package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.ExtractModel)
	assert.InDelta(t, 0.3, cfg.CreativityLevel, 1e-9)
	assert.Equal(t, TailorModeCrew, cfg.TailorMode)
	assert.Equal(t, 2, cfg.TailorAttempts)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "7860", cfg.Port)
	assert.Equal(t, "http", cfg.JobFetcher)
	assert.True(t, cfg.BrowserHeadless)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"GEMINI_MODEL":     "gemini-2.5-flash",
		"CREATIVITY_LEVEL": "0.7",
		"TAILOR_MODE":      "Single",
		"TAILOR_ATTEMPTS":  "4",
		"WORKERS":          "1",
		"JOB_FETCHER":      "browser",
		"BROWSER_HEADLESS": "false",
		"R2_BUCKET":        "resumes",
	}))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.InDelta(t, 0.7, cfg.CreativityLevel, 1e-9)
	assert.Equal(t, TailorModeSingle, cfg.TailorMode)
	assert.Equal(t, 4, cfg.TailorAttempts)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "browser", cfg.JobFetcher)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, "resumes", cfg.R2.Bucket)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"creativity", map[string]string{"CREATIVITY_LEVEL": "warm"}, "CREATIVITY_LEVEL"},
		{"attempts not a number", map[string]string{"TAILOR_ATTEMPTS": "two"}, "TAILOR_ATTEMPTS"},
		{"zero attempts", map[string]string{"TAILOR_ATTEMPTS": "0"}, "TAILOR_ATTEMPTS"},
		{"zero workers", map[string]string{"WORKERS": "0"}, "WORKERS"},
		{"mode", map[string]string{"TAILOR_MODE": "swarm"}, "TAILOR_MODE"},
		{"fetcher", map[string]string{"JOB_FETCHER": "curl"}, "JOB_FETCHER"},
		{"headless", map[string]string{"BROWSER_HEADLESS": "maybe"}, "BROWSER_HEADLESS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigRequire(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"DB_URL":         "postgres://localhost/resumes",
		"GOOGLE_API_KEY": "key",
	}))
	require.NoError(t, err)

	assert.NoError(t, cfg.require("DB_URL", "GOOGLE_API_KEY"))
	assert.EqualError(t, cfg.require("DB_URL", "RABBITMQ_URL"), "empty RABBITMQ_URL in environment")
	assert.EqualError(t, cfg.require(r2Keys...), "empty R2_ACCCOUNT_ID in environment")
	assert.Error(t, cfg.require("NOPE"))
}
