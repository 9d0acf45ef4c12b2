// Package config holds the ambient application configuration (YAML) and
// the editable domain rule/override document (JSON) the manager consumes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's ambient configuration: where the
// installation and config directory live, logging, and backup retention.
// Distinct from the JSON rule/override documents the manager edits.
type Config struct {
	InstallRoot  string       `yaml:"install_root"`
	ConfigDir    string       `yaml:"config_dir"`
	Log          LogSettings  `yaml:"log"`
	BackupRetain int          `yaml:"backup_retain"`
	AuditRetain  Duration     `yaml:"audit_retain"`
	Server       ServerConfig `yaml:"server"`
}

// LogSettings holds the server/events log paths and level.
type LogSettings struct {
	ServerPath string `yaml:"server_path"`
	EventsPath string `yaml:"events_path"`
	Level      string `yaml:"level"`
}

// ServerConfig holds the optional HTTP/WS contract-server listen address.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default ambient configuration.
func DefaultConfig() *Config {
	return &Config{
		InstallRoot:  "",
		ConfigDir:    "",
		BackupRetain: 10,
		AuditRetain:  Duration(30 * Day),
		Log: LogSettings{
			ServerPath: "./logs/server.log",
			EventsPath: "./logs/events.log",
			Level:      "INFO",
		},
		Server: ServerConfig{
			Address: "localhost:1982",
		},
	}
}

// Load loads the configuration from path, creating it with defaults if it
// does not exist. Existing files are merged onto the defaults but not
// rewritten, preserving user formatting and comments.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		_ = godotenv.Load(".env.local", ".env")
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# xaddonmgr configuration
# -----------------------
# install_root: the simulator installation directory (contains Custom Scenery/)
# config_dir: override for the per-installation config directory (used by tests)

`)
	data = append(header, data...)

	reLevel := regexp.MustCompile(`(?m)^(\s+)level:`)
	data = reLevel.ReplaceAll(data, []byte("${1}# Options: DEBUG, INFO, WARN, ERROR\n${1}level:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at path if it does not
// already exist.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}

// envOverrideVar is the environment variable tests use to redirect the
// config root away from the OS config directory.
const envOverrideVar = "XADDONMGR_CONFIG_DIR"

// ResolveConfigDir derives the per-installation config directory: an
// explicit override (env var or Config.ConfigDir) if set, else a
// subdirectory of the OS config directory named by a hash of the
// installation root so that two installations never share state.
func ResolveConfigDir(cfg *Config) (string, error) {
	if v := os.Getenv(envOverrideVar); v != "" {
		return v, nil
	}
	if cfg.ConfigDir != "" {
		return cfg.ConfigDir, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve OS config dir: %w", err)
	}

	sum := xxhash.Sum64String(filepath.Clean(cfg.InstallRoot))
	sub := fmt.Sprintf("xaddonmgr-%016x", sum)
	return filepath.Join(base, sub), nil
}
