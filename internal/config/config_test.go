package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEADPROTON_CONFIG", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "gemini", cfg.DefaultLLM)
	assert.Empty(t, cfg.JWTSecret)
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leadproton.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: "9000"
store_backend: sqlite
store_path: /tmp/leads.db
scheduler_interval: 5s
cors_origins: ["https://app.example.com"]
smtp_host: smtp.example.com
`), 0o600))

	t.Setenv("LEADPROTON_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.ServerPort)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, "/tmp/leads.db", cfg.StorePath)
	assert.Equal(t, 5*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StoreBackend = "redis" },
			wantErr: `unknown store backend "redis"`,
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.StoreBackend = StorePostgres },
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.SchedulerInterval = 0 },
			wantErr: "scheduler interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
