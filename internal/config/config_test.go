package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, "http://localhost:8484", cfg.Remote.URL)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 2*time.Second, cfg.Sync.Debounce)
	assert.Equal(t, 8484, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/other.db
remote:
  url: https://sync.example.com
  token: tok-123
  user_id: u1
sync:
  interval: 90s
  debounce: 500ms
server:
  port: 9000
  jwt_secret: sssh
log:
  file: /tmp/liftlog.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "https://sync.example.com", cfg.Remote.URL)
	assert.Equal(t, "tok-123", cfg.Remote.Token)
	assert.Equal(t, "u1", cfg.Remote.UserID)
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sssh", cfg.Server.JWTSecret)
	assert.Equal(t, "/tmp/liftlog.log", cfg.Log.File)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIFTLOG_REMOTE_URL", "https://env.example.com")
	t.Setenv("LIFTLOG_SERVER_PORT", "9191")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Remote.URL)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty database path",
			content: "database:\n  path: \"\"\n",
			wantErr: "database.path",
		},
		{
			name:    "zero interval",
			content: "sync:\n  interval: 0s\n",
			wantErr: "sync.interval",
		},
		{
			name:    "negative debounce",
			content: "sync:\n  debounce: -1s\n",
			wantErr: "sync.debounce",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			wantErr: "server.port",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
