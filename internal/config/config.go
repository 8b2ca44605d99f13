package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Engine  EngineConfig  `toml:"engine"`
	Watch   WatchConfig   `toml:"watch"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Host    string     `toml:"host"`
	Port    int        `toml:"port"`
	BaseURL string     `toml:"base_url"`
	Auth    AuthConfig `toml:"auth"`
	TLS     TLSConfig  `toml:"tls"`
}

type AuthConfig struct {
	Enabled           bool     `toml:"enabled"`
	APIKeys           []string `toml:"api_keys"`
	BasicAuthUser     string   `toml:"basic_auth_user"`
	BasicAuthPassHash string   `toml:"basic_auth_password_hash"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// EngineConfig describes the external OCR executable and the fixed
// names it works with.
type EngineConfig struct {
	Binary         string   `toml:"binary"`
	ResultFilename string   `toml:"result_filename"`
	FirstPassArgs  []string `toml:"first_pass_args"`
	PictureMode    string   `toml:"picture_mode"`
	PictureTempDir string   `toml:"picture_temp_dir"`
}

// WatchConfig configures the hot-folder ingester.
type WatchConfig struct {
	Enabled         bool     `toml:"enabled"`
	Directory       string   `toml:"directory"`
	OutputDirectory string   `toml:"output_directory"`
	PollInterval    duration `toml:"poll_interval"`
	Profile         string   `toml:"profile"`
	Output          string   `toml:"output"`
}

type OutputConfig struct {
	Filesystem FilesystemConfig `toml:"filesystem"`
	SMB        SMBConfig        `toml:"smb"`
	Consume    ConsumeConfig    `toml:"consume"`
	Webhook    WebhookConfig    `toml:"webhook"`
	Email      EmailConfig      `toml:"email"`
}

type FilesystemConfig struct {
	Directory string `toml:"directory"`
}

type SMBConfig struct {
	Enabled      bool   `toml:"enabled"`
	Server       string `toml:"server"`
	Share        string `toml:"share"`
	Username     string `toml:"username"`
	PasswordFile string `toml:"password_file"`
	Directory    string `toml:"directory"`
}

type ConsumeConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type WebhookConfig struct {
	Enabled   bool   `toml:"enabled"`
	URL       string `toml:"url"`
	TokenFile string `toml:"token_file"`
	Token     string `toml:"token"`
}

type EmailConfig struct {
	Enabled          bool   `toml:"enabled"`
	SMTPHost         string `toml:"smtp_host"`
	SMTPPort         int    `toml:"smtp_port"`
	SMTPUser         string `toml:"smtp_user"`
	SMTPPasswordFile string `toml:"smtp_password_file"`
	FromAddress      string `toml:"from_address"`
	DefaultRecipient string `toml:"default_recipient"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// duration wraps time.Duration for TOML unmarshaling.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}

func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the server configuration from a TOML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.loadSecrets(); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			Binary:         "dots.ocr",
			ResultFilename: "result.json",
			FirstPassArgs:  []string{"--mode", "layout_all"},
			PictureMode:    "prompt_grounding_ocr",
			PictureTempDir: "_picture_temp",
		},
		Watch: WatchConfig{
			PollInterval: duration(2 * time.Second),
			Profile:      "standard",
			Output:       "filesystem",
		},
		Output: OutputConfig{
			Filesystem: FilesystemConfig{
				Directory: "/var/lib/ocrflow/documents",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadSecrets reads secret values from files.
func (c *Config) loadSecrets() error {
	if c.Output.Webhook.TokenFile != "" && c.Output.Webhook.Token == "" {
		token, err := readSecretFile(c.Output.Webhook.TokenFile)
		if err != nil && c.Output.Webhook.Enabled {
			return fmt.Errorf("webhook token: %w", err)
		}
		c.Output.Webhook.Token = token
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
