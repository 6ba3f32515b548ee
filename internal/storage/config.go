package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

const (
	ConfigFileName = "config"
	ConfigFileType = "yaml"
	AppDirName     = ".actionguard"
	EnvPrefix      = "ACTIONGUARD"

	ExecSnapshotFile = "ratelimit-exec.json"
	FileSnapshotFile = "ratelimit-files.json"
	AuditLogFile     = "audit.log"
)

var config *Config

// Config holds the application configuration
type Config struct {
	Security  security.SecurityPolicy `mapstructure:"security"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Sandbox   SandboxConfig           `mapstructure:"sandbox"`
	Confirm   ConfirmConfig           `mapstructure:"confirm"`
	Guard     GuardConfig             `mapstructure:"guard"`
	Audit     AuditConfig             `mapstructure:"audit"`
	Server    ServerConfig            `mapstructure:"server"`
	Log       LogConfig               `mapstructure:"log"`

	// Dir is the directory the config was loaded from. State files live here.
	Dir string `mapstructure:"-"`
}

// RateLimitConfig holds the sliding window limits
type RateLimitConfig struct {
	MaxExecutions     int    `mapstructure:"max_executions"`
	WindowSeconds     int    `mapstructure:"window_seconds"`
	FileOpsPerWindow  int    `mapstructure:"file_ops_per_window"`
	SweepIntervalSecs int    `mapstructure:"sweep_interval_seconds"`
	RedisAddr         string `mapstructure:"redis_addr"`
	RedisKeyPrefix    string `mapstructure:"redis_key_prefix"`
}

// Window returns the window as a duration
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SandboxConfig holds execution limits
type SandboxConfig struct {
	TimeoutMs int    `mapstructure:"timeout_ms"`
	MaxSteps  uint64 `mapstructure:"max_steps"`
}

// Timeout returns the execution timeout as a duration
func (c SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ConfirmConfig holds confirmation settings
type ConfirmConfig struct {
	CodeDigits int `mapstructure:"code_digits"`
	// ChallengeTTLSeconds is how long servers keep an unanswered challenge.
	ChallengeTTLSeconds int `mapstructure:"challenge_ttl_seconds"`
}

// GuardConfig holds façade limits
type GuardConfig struct {
	MaxReadBytes int64 `mapstructure:"max_read_bytes"`
}

// AuditConfig holds audit log settings
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Journal bool   `mapstructure:"journal"`
}

// GetConfigDir returns the actionguard config directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, AppDirName), nil
}

// InitConfig initializes the configuration from the default directory
func InitConfig() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return InitConfigAt(configDir)
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(configDir)
	return v
}

// InitConfigAt initializes the configuration from configDir
func InitConfigAt(configDir string) (*Config, error) {
	// Create config directory if not exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Security defaults
	v.SetDefault("security.blocked_paths", security.DefaultBlockedPaths)
	v.SetDefault("security.sensitive_files", security.DefaultSensitiveFiles)
	v.SetDefault("security.dangerous_patterns", []string{})

	// Rate limit defaults
	v.SetDefault("rate_limit.max_executions", 5)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.file_ops_per_window", 30)
	v.SetDefault("rate_limit.sweep_interval_seconds", 300)
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.redis_key_prefix", "actionguard:ratelimit")

	// Sandbox defaults
	v.SetDefault("sandbox.timeout_ms", 5000)
	v.SetDefault("sandbox.max_steps", 0)

	// Confirmation defaults
	v.SetDefault("confirm.code_digits", 4)
	v.SetDefault("confirm.challenge_ttl_seconds", 300)

	v.SetDefault("guard.max_read_bytes", 1<<20)
	v.SetDefault("audit.path", "")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.journal", true)

	// Read config file (ignore if not exists)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Dir = configDir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config = &cfg
	return config, nil
}

// Validate rejects settings the guard cannot run with
func (c *Config) Validate() error {
	if c.RateLimit.MaxExecutions <= 0 {
		return fmt.Errorf("rate_limit.max_executions must be positive, got %d", c.RateLimit.MaxExecutions)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Sandbox.TimeoutMs <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got %d", c.Sandbox.TimeoutMs)
	}
	if c.Confirm.CodeDigits < 4 || c.Confirm.CodeDigits > 9 {
		return fmt.Errorf("confirm.code_digits must be between 4 and 9, got %d", c.Confirm.CodeDigits)
	}
	return nil
}

// ExecSnapshotPath returns the execution limiter snapshot path
func (c *Config) ExecSnapshotPath() string {
	return filepath.Join(c.Dir, ExecSnapshotFile)
}

// FileSnapshotPath returns the file-operation limiter snapshot path
func (c *Config) FileSnapshotPath() string {
	return filepath.Join(c.Dir, FileSnapshotFile)
}

// AuditLogPath returns the configured audit log path or the default
func (c *Config) AuditLogPath() string {
	if c.Audit.Path != "" {
		return c.Audit.Path
	}
	return filepath.Join(c.Dir, AuditLogFile)
}

// GetConfig returns the loaded config
func GetConfig() *Config {
	return config
}

// SaveConfig saves the config to configDir
func SaveConfig(cfg *Config, configDir string) error {
	// Create config directory if not exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(configDir)

	v.Set("security.blocked_paths", cfg.Security.BlockedPaths)
	v.Set("security.sensitive_files", cfg.Security.SensitiveFiles)
	v.Set("security.dangerous_patterns", cfg.Security.DangerousPatterns)

	v.Set("rate_limit.max_executions", cfg.RateLimit.MaxExecutions)
	v.Set("rate_limit.window_seconds", cfg.RateLimit.WindowSeconds)
	v.Set("rate_limit.file_ops_per_window", cfg.RateLimit.FileOpsPerWindow)
	v.Set("rate_limit.sweep_interval_seconds", cfg.RateLimit.SweepIntervalSecs)
	v.Set("rate_limit.redis_addr", cfg.RateLimit.RedisAddr)
	v.Set("rate_limit.redis_key_prefix", cfg.RateLimit.RedisKeyPrefix)

	v.Set("sandbox.timeout_ms", cfg.Sandbox.TimeoutMs)
	v.Set("sandbox.max_steps", cfg.Sandbox.MaxSteps)

	v.Set("confirm.code_digits", cfg.Confirm.CodeDigits)
	v.Set("confirm.challenge_ttl_seconds", cfg.Confirm.ChallengeTTLSeconds)

	v.Set("guard.max_read_bytes", cfg.Guard.MaxReadBytes)
	v.Set("audit.path", cfg.Audit.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.journal", cfg.Log.Journal)

	configPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileType)
	return v.WriteConfigAs(configPath)
}
