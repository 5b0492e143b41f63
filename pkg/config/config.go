package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tomes/pkg/openlibrary"
)

//go:embed config.toml.sample
var configTemplate string

type Config struct {
	StorageDir string       `toml:"storage_dir"`
	ListenAddr string       `toml:"listen_addr"`
	UserAgent  string       `toml:"user_agent,omitempty"`
	Search     SearchConfig `toml:"search"`
}

// SearchConfig configures the Open Library client defaults.
type SearchConfig struct {
	Fields            []string `toml:"fields"`
	Limit             int      `toml:"limit"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		StorageDir: storageDir,
		ListenAddr: "localhost:8080",
		Search: SearchConfig{
			Fields:  append([]string(nil), openlibrary.DefaultFields...),
			Limit:   openlibrary.DefaultLimit,
			Timeout: Duration{30 * time.Second},
		},
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	if config.ListenAddr == "" {
		config.ListenAddr = "localhost:8080"
	}

	if len(config.Search.Fields) == 0 {
		config.Search.Fields = append([]string(nil), openlibrary.DefaultFields...)
	}

	if config.Search.Limit == 0 {
		config.Search.Limit = openlibrary.DefaultLimit
	}

	if config.Search.Timeout.Duration == 0 {
		config.Search.Timeout = Duration{30 * time.Second}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values defaulting cannot repair.
func (c *Config) Validate() error {
	if c.Search.Limit < 0 {
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	if c.Search.RequestsPerSecond < 0 {
		return fmt.Errorf("search.requests_per_second must not be negative, got %v", c.Search.RequestsPerSecond)
	}
	return nil
}

// ClientConfig translates the search section into an Open Library client
// configuration.
func (c *Config) ClientConfig() openlibrary.Config {
	return openlibrary.Config{
		Fields:            c.Search.Fields,
		Limit:             c.Search.Limit,
		UserAgent:         c.UserAgent,
		Timeout:           c.Search.Timeout.Duration,
		RequestsPerSecond: c.Search.RequestsPerSecond,
	}
}

// ShelfPath returns the path of the shelf database inside the storage
// directory.
func (c *Config) ShelfPath() string {
	return filepath.Join(c.StorageDir, "shelf.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/tomes", storageDir, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for the shelf
// database
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	tomesDir := filepath.Join(dataDir, "tomes")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(tomesDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", tomesDir, err)
	}

	return tomesDir, nil
}

// GetConfigDir returns the configuration directory for tomes
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tomesConfigDir := filepath.Join(configDir, "tomes")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(tomesConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", tomesConfigDir, err)
	}

	return tomesConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// GetHistoryPath returns the path of the interactive shell history file
func GetHistoryPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "history"), nil
}
