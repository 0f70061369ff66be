package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Keychain    KeychainConfig    `toml:"keychain"`
	Limits      LimitsConfig      `toml:"limits"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// CredentialsConfig contains platform OAuth client settings.
type CredentialsConfig struct {
	X XConfig `toml:"x"`
}

// XConfig contains the OAuth2 public client registration for the X API.
//
// PKCE clients have no secret; only the client id is required.
type XConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	Scopes      []string `toml:"scopes"`
	AuthURL     string   `toml:"auth_url"`
	TokenURL    string   `toml:"token_url"`
}

// APIConfig contains REST endpoints and client-side pacing.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	UploadURL         string  `toml:"upload_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the loopback OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// KeychainConfig selects where the OAuth credential is kept.
type KeychainConfig struct {
	Service string `toml:"service"`
	Backend string `toml:"backend"` // "system" or "memory"
}

// LimitsConfig contains platform limits used for validation.
type LimitsConfig struct {
	MaxChars      int   `toml:"max_chars"`
	MaxImageBytes int64 `toml:"max_image_bytes"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// MetricsConfig controls the optional prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// CallbackAddr returns the host:port the loopback callback server listens on.
func (s ServerConfig) CallbackAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate reports configuration values that would make the client unusable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" || c.API.UploadURL == "" {
		return fmt.Errorf("%w: api.base_url and api.upload_url are required", ErrInvalidConfig)
	}
	if c.Limits.MaxChars <= 0 {
		return fmt.Errorf("%w: limits.max_chars must be positive", ErrInvalidConfig)
	}
	if c.Limits.MaxImageBytes <= 0 {
		return fmt.Errorf("%w: limits.max_image_bytes must be positive", ErrInvalidConfig)
	}
	if c.Keychain.Backend != "system" && c.Keychain.Backend != "memory" {
		return fmt.Errorf("%w: keychain.backend must be system or memory, got %q", ErrInvalidConfig, c.Keychain.Backend)
	}
	return nil
}

// ResolveEnv fills credentials from the environment when the file leaves them empty.
func (c *Config) ResolveEnv() {
	if v := strings.TrimSpace(os.Getenv("THREADX_CLIENT_ID")); v != "" && c.Credentials.X.ClientID == "" {
		c.Credentials.X.ClientID = v
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ResolveEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.ResolveEnv()
	return &config
}

// SaveConfig writes the configuration back to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
