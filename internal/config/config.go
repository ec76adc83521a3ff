package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds CLI configuration loaded from YAML, .env and environment.
type Config struct {
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	CityAPIKey     string
	CityAPIURL     string
	CityAPITimeout time.Duration

	StorageBackend string // "file", "in_memory", "sqlite" or "memcached"
	StorageKey     string
	FileDir        string
	SQLitePath     string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	Location   *time.Location
	TimeLayout string
	DateLayout string

	SearchParallel  int
	RefreshInterval time.Duration
	ShutdownTimeout time.Duration

	LogLevel    string
	LogEncoding string
	MetricsFile string
}

type fileConfig struct {
	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	CityAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"city_api"`

	Storage struct {
		Backend string `yaml:"backend"`
		Key     string `yaml:"key"`
		File    struct {
			Dir string `yaml:"dir"`
		} `yaml:"file"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"storage"`

	Display struct {
		Timezone   string `yaml:"timezone"`
		TimeLayout string `yaml:"time_layout"`
		DateLayout string `yaml:"date_layout"`
	} `yaml:"display"`

	Search struct {
		Parallel int `yaml:"parallel"`
	} `yaml:"search"`

	Watch struct {
		Interval string `yaml:"interval"`
	} `yaml:"watch"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"log"`

	Metrics struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	CityAPIKey    string `yaml:"city_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// after loading a .env file from the working directory if one exists. API keys come from
// WEATHER_API_KEY / CITY_API_KEY or the secrets file; env wins. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}
	cfg.CityAPIKey = firstNonEmpty(os.Getenv("CITY_API_KEY"), sec.CityAPIKey)

	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.CityAPIURL = firstNonEmpty(fc.CityAPI.URL, "https://api.api-ninjas.com/v1")
	cfg.CityAPITimeout = parseDurationOrZero(fc.CityAPI.Timeout, 10*time.Second)

	cfg.StorageBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_BACKEND")))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = strings.TrimSpace(strings.ToLower(fc.Storage.Backend))
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	cfg.StorageKey = firstNonEmpty(strings.TrimSpace(fc.Storage.Key), "favoriteCities")

	dataDir := defaultDataDir()
	cfg.FileDir = firstNonEmpty(strings.TrimSpace(fc.Storage.File.Dir), dataDir)
	cfg.SQLitePath = firstNonEmpty(strings.TrimSpace(fc.Storage.SQLite.Path), filepath.Join(dataDir, "favorites.db"))

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Storage.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	tz := firstNonEmpty(os.Getenv("DISPLAY_TZ"), strings.TrimSpace(fc.Display.Timezone))
	if tz == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("display.timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}
	cfg.TimeLayout = firstNonEmpty(fc.Display.TimeLayout, "15:04")
	cfg.DateLayout = firstNonEmpty(fc.Display.DateLayout, "Mon 2006-01-02")

	cfg.SearchParallel = fc.Search.Parallel
	if cfg.SearchParallel <= 0 {
		cfg.SearchParallel = 8
	}
	cfg.RefreshInterval = parseDuration(fc.Watch.Interval, 10*time.Minute)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 15*time.Second)

	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), fc.Log.Level)
	cfg.LogEncoding = fc.Log.Encoding
	cfg.MetricsFile = firstNonEmpty(os.Getenv("METRICS_FILE"), fc.Metrics.File)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "weather-favorites")
	}
	return ".favorites"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.CityAPITimeout <= 0 {
		return fmt.Errorf("CITY_API_TIMEOUT must be positive")
	}
	switch cfg.StorageBackend {
	case "file", "in_memory", "sqlite", "memcached":
		// valid
	default:
		return fmt.Errorf("storage.backend must be file, in_memory, sqlite or memcached, got %q", cfg.StorageBackend)
	}
	return nil
}
