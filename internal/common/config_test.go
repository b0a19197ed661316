package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Downloader.Port)
	assert.Equal(t, 4, cfg.Downloader.TimeoutSeconds)
	assert.Equal(t, int64(8*1024*1024), cfg.Downloader.MaxBodyBytes)
	assert.Equal(t, DefaultUserAgent, cfg.Downloader.UserAgent)
	assert.NotEmpty(t, cfg.Downloader.BaseDir)
	assert.NotEmpty(t, cfg.Naming.ScriptPath)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.toml")
	content := `
[downloader]
port = 9090
base_dir = "/tmp/tickets"
timeout_seconds = 10

[[servers]]
id = "EB"
name = "Engineering"
url = "https://tracker.example.com"
username = "alice"
password = "secret"

[[servers]]
id = "ESO"
name = "Operations"
url = "https://ops.example.com"
username = "bob"
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Downloader.Port)
	assert.Equal(t, "/tmp/tickets", cfg.Downloader.BaseDir)
	assert.Equal(t, 10, cfg.Downloader.TimeoutSeconds)

	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "EB", cfg.Servers[0].Id)
	assert.Equal(t, "https://tracker.example.com", cfg.Servers[0].URL)
	assert.Equal(t, "alice", cfg.Servers[0].Username)
	assert.Empty(t, cfg.Servers[1].Password)

	// Unset fields keep their defaults.
	assert.Equal(t, int64(8*1024*1024), cfg.Downloader.MaxBodyBytes)
	assert.Equal(t, DefaultUserAgent, cfg.Downloader.UserAgent)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestValidateRejectsServerWithoutId(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = []ServerConfig{{URL: "https://tracker.example.com"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestValidateRejectsServerWithoutURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = []ServerConfig{{Id: "EB"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Downloader.Port = 0
	cfg.Downloader.TimeoutSeconds = -1
	cfg.Downloader.MaxBodyBytes = 0
	cfg.Downloader.UserAgent = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Downloader.Port)
	assert.Equal(t, 4, cfg.Downloader.TimeoutSeconds)
	assert.Equal(t, int64(8*1024*1024), cfg.Downloader.MaxBodyBytes)
	assert.Equal(t, DefaultUserAgent, cfg.Downloader.UserAgent)
}

func TestServerList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = []ServerConfig{
		{Id: "EB", Name: "Engineering", URL: "https://tracker.example.com", Username: "alice", Password: "secret"},
		{Id: "ESO", Name: "Operations", URL: "https://ops.example.com"},
	}

	list := cfg.ServerList()
	require.Len(t, list.Servers, 2)
	assert.Equal(t, "EB", list.Servers[0].Id)
	assert.Equal(t, "Engineering", list.Servers[0].Name)
	assert.Equal(t, "secret", list.Servers[0].Password)
	assert.False(t, list.Servers[0].IsAuthenticated())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICKETS_BASE_DIR", "/srv/tickets")
	t.Setenv("SERVER_PORT", "7070")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "/srv/tickets", cfg.Downloader.BaseDir)
	assert.Equal(t, 7070, cfg.Downloader.Port)
}
