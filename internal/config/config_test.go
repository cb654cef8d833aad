package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("PORTAL_BACKEND_URL", "https://script.example.com/exec")

	yamlContent := `
app:
  name: "platzreife"
backend:
  base_url: "${PORTAL_BACKEND_URL}"
  slots_timeout: 2s
webhook:
  url: "https://hooks.example.com/booking"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://script.example.com/exec", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.SlotsTimeout)
	assert.Equal(t, 30*time.Second, cfg.Backend.BookTimeout)
	assert.Equal(t, 8, cfg.Schedule.DefaultCapacity)
	assert.Equal(t, "09:00", cfg.Schedule.CourseStart)
	assert.Len(t, cfg.Schedule.StaticDates, len(DefaultStaticDates))
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Webhook.RetryDelay)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, DefaultTimezone, cfg.App.Timezone)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{Backend: BackendConfig{BaseURL: "https://script.example.com/exec"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Backend.BaseURL = "" }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.Backend.BaseURL = "/exec" }, wantErr: true},
		{name: "bad course start", mutate: func(c *Config) { c.Schedule.CourseStart = "9 Uhr" }, wantErr: true},
		{name: "non canonical date", mutate: func(c *Config) { c.Schedule.StaticDates = []string{"25.02.2026"} }, wantErr: true},
		{name: "duplicate date", mutate: func(c *Config) { c.Schedule.StaticDates = []string{"2026-02-25", "2026-02-25"} }, wantErr: true},
		{name: "negative capacity", mutate: func(c *Config) { c.Schedule.DefaultCapacity = -1 }, wantErr: true},
		{name: "file output without path", mutate: func(c *Config) { c.Logging.Output = "file" }, wantErr: true},
		{name: "http without csrf key", mutate: func(c *Config) { c.HTTP.Enabled = true }, wantErr: true},
		{name: "http with csrf key", mutate: func(c *Config) {
			c.HTTP.Enabled = true
			c.HTTP.CSRFKey = "0123456789abcdef"
		}},
		{name: "unknown timezone", mutate: func(c *Config) { c.App.Timezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
