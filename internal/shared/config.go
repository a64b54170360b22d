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

const (
	EnvOMDbAPIKey = "MOVIEWEB_OMDB_API_KEY"
	EnvTMDBToken  = "MOVIEWEB_TMDB_TOKEN"
	EnvJWTSecret  = "MOVIEWEB_JWT_SECRET"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Provider    ProviderConfig    `toml:"provider"`
}

// CredentialsConfig contains metadata provider credentials.
type CredentialsConfig struct {
	OMDb OMDbConfig `toml:"omdb"`
	TMDB TMDBConfig `toml:"tmdb"`
}

// OMDbConfig contains OMDb API credentials.
type OMDbConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// TMDBConfig contains TMDB API credentials.
type TMDBConfig struct {
	Token        string `toml:"token"`
	BaseURL      string `toml:"base_url"`
	ImageBaseURL string `toml:"image_base_url"`
	Language     string `toml:"language"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// When JWTSecret is empty the server trusts the X-Account-ID header.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	JWTSecret string `toml:"jwt_secret"`
}

// ProviderConfig selects and tunes the metadata provider.
type ProviderConfig struct {
	Name      string   `toml:"name"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "8s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults, and credentials set in the environment win over the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides secrets with values from the environment when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOMDbAPIKey); v != "" {
		c.Credentials.OMDb.APIKey = v
	}
	if v := os.Getenv(EnvTMDBToken); v != "" {
		c.Credentials.TMDB.Token = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
}

// Validate reports configuration that would make the provider unusable.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "omdb":
		if c.Credentials.OMDb.APIKey == "" {
			return fmt.Errorf("%w: omdb api_key (or %s)", ErrMissingCredentials, EnvOMDbAPIKey)
		}
	case "tmdb":
		if c.Credentials.TMDB.Token == "" {
			return fmt.Errorf("%w: tmdb token (or %s)", ErrMissingCredentials, EnvTMDBToken)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider.Name)
	}

	if c.Provider.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: provider timeout must be positive", ErrInvalidConfig)
	}
	if c.Provider.RateLimit < 0 {
		return fmt.Errorf("%w: provider rate_limit must not be negative", ErrInvalidConfig)
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
