package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Calil    CalilConfig    `toml:"calil"`
	Browser  BrowserConfig  `toml:"browser"`
	Session  SessionConfig  `toml:"session"`
	NDL      NDLConfig      `toml:"ndl"`
	Covers   CoversConfig   `toml:"covers"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// CalilConfig describes the upstream holds service and its endpoints.
type CalilConfig struct {
	BaseURL      string   `toml:"base_url"`
	AuthHost     string   `toml:"auth_host"`
	LoginPath    string   `toml:"login_path"`
	TokenPath    string   `toml:"token_path"`
	ListMetaPath string   `toml:"list_meta_path"`
	ListPath     string   `toml:"list_path"`
	PageSize     int      `toml:"page_size"`
	TokenTTL     Duration `toml:"token_ttl"`
}

// BrowserConfig contains settings for the automated login browser.
type BrowserConfig struct {
	Headless     string   `toml:"headless"` // auto, always, never
	Executable   string   `toml:"executable"`
	ProfileDir   string   `toml:"profile_dir"`
	EndpointFile string   `toml:"endpoint_file"`
	LoginTimeout Duration `toml:"login_timeout"`
	UserAgent    string   `toml:"user_agent"`
}

// SessionConfig locates the persisted session file.
type SessionConfig struct {
	Path string `toml:"path"`
}

// NDLConfig contains National Diet Library search settings.
type NDLConfig struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
}

// CoversConfig locates the cover image cache.
type CoversConfig struct {
	Dir string `toml:"dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Duration is a [time.Duration] decoded from strings such as "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
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

	config.expand()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.expand()
	return &config
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

func (c *Config) expand() {
	c.Browser.ProfileDir = ExpandPath(c.Browser.ProfileDir)
	c.Browser.EndpointFile = ExpandPath(c.Browser.EndpointFile)
	c.Browser.Executable = ExpandPath(c.Browser.Executable)
	c.Session.Path = ExpandPath(c.Session.Path)
	c.Covers.Dir = ExpandPath(c.Covers.Dir)
	c.Database.Path = ExpandPath(c.Database.Path)
}
