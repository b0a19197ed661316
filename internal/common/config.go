package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"teamforge-downloader/internal/models"
)

// DefaultUserAgent is sent on every tracker request. The tracker serves a
// different page layout to unknown clients, so we present as Firefox.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; WOW64; rv:23.0) Gecko/20100101 Firefox/23.0"

type Config struct {
	Downloader DownloaderConfig `toml:"downloader"`
	Servers    []ServerConfig   `toml:"servers"`
	Naming     NamingConfig     `toml:"naming"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
}

type DownloaderConfig struct {
	Name           string `toml:"name"`
	Environment    string `toml:"environment"`
	Port           int    `toml:"port"`
	BaseDir        string `toml:"base_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
	UserAgent      string `toml:"user_agent"`
}

type ServerConfig struct {
	Id       string `toml:"id"`
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type NamingConfig struct {
	ScriptPath string `toml:"script_path"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Downloader: DownloaderConfig{
			Name:           execName,
			Environment:    "development",
			Port:           8080,
			BaseDir:        filepath.Join(home, "tickets"),
			TimeoutSeconds: 4,
			MaxBodyBytes:   8 * 1024 * 1024,
			UserAgent:      DefaultUserAgent,
		},
		Naming: NamingConfig{
			ScriptPath: filepath.Join(configDir(home), "dir-namer.js"),
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(execDir, "data", execName+".db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func configDir(home string) string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "teamforge-downloader")
	}
	return filepath.Join(home, ".teamforge-downloader")
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			return config, nil
		}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, NewConfigurationError("read_config", fmt.Sprintf("failed to read config file %s", configFile)).WithCause(err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, NewConfigurationError("parse_config", "failed to parse config file").WithCause(err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if baseDir := os.Getenv("TICKETS_BASE_DIR"); baseDir != "" {
		config.Downloader.BaseDir = baseDir
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
	if scriptPath := os.Getenv("NAMING_SCRIPT"); scriptPath != "" {
		config.Naming.ScriptPath = scriptPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Downloader.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Downloader.BaseDir == "" {
		return NewConfigurationError("base_dir", "downloader base_dir is required")
	}
	if c.Storage.DatabasePath == "" {
		return NewConfigurationError("database_path", "storage database_path is required")
	}

	if c.Downloader.Port <= 0 {
		c.Downloader.Port = 8080
	}
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = 4
	}
	if c.Downloader.MaxBodyBytes <= 0 {
		c.Downloader.MaxBodyBytes = 8 * 1024 * 1024
	}
	if c.Downloader.UserAgent == "" {
		c.Downloader.UserAgent = DefaultUserAgent
	}

	for i, server := range c.Servers {
		if server.Id == "" {
			return NewConfigurationError("server_id", fmt.Sprintf("server %d has no id", i))
		}
		if server.URL == "" {
			return NewConfigurationError("server_url", fmt.Sprintf("server %q has no url", server.Id))
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return NewConfigurationError("log_level", fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return NewConfigurationError("log_output", fmt.Sprintf("invalid log output: %s", c.Logging.Output))
	}

	return nil
}

// ServerList builds the runtime server directory from the configured
// servers, preserving configuration order.
func (c *Config) ServerList() *models.ServerList {
	list := &models.ServerList{}
	for _, sc := range c.Servers {
		list.Servers = append(list.Servers, &models.ServerInfo{
			Id:       sc.Id,
			Name:     sc.Name,
			URL:      sc.URL,
			Username: sc.Username,
			Password: sc.Password,
		})
	}
	return list
}

func (c *Config) IsProduction() bool {
	return c.Downloader.Environment == "production"
}
