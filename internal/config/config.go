package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/affirm/internal/constants"
)

// Config holds the optional settings file. Every field has a usable default, so a missing
// file is not an error.
type Config struct {
	// Origin is the base URL the application assets and data resource are served from.
	// Empty means offline-only: the bundled data file or the built-in fallback is used.
	Origin       string        `yaml:"origin"`
	Listen       string        `yaml:"listen"`
	CacheVersion string        `yaml:"cache_version"`
	DataFile     string        `yaml:"data_file"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MatchWindow  int           `yaml:"match_window_min"`
	ShareCommand []string      `yaml:"share_command"`
	AgentDir     string        `yaml:"agent_dir"`
	LogDir       string        `yaml:"log_dir"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

func Default() Config {
	dir := defaultDir()
	return Config{
		Listen:       constants.DefaultListenAddr,
		CacheVersion: constants.CacheVersion,
		PollInterval: constants.DefaultPollInterval,
		MatchWindow:  constants.DefaultMatchWindowMin,
		AgentDir:     dir,
		LogDir:       filepath.Join(dir, "logs"),
		FetchTimeout: 10 * time.Second,
	}
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, constants.AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", constants.AppName)
}

// Load reads path over the defaults and then applies AFFIRM_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("AFFIRM_ORIGIN"); v != "" {
		cfg.Origin = v
	}
	if v := os.Getenv("AFFIRM_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("AFFIRM_DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("AFFIRM_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AFFIRM_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("AFFIRM_MATCH_WINDOW_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AFFIRM_MATCH_WINDOW_MIN: %w", err)
		}
		cfg.MatchWindow = n
	}
	if v := os.Getenv("AFFIRM_SHARE_COMMAND"); v != "" {
		cfg.ShareCommand = strings.Fields(v)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Origin != "" {
		u, err := url.Parse(c.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("origin must be an absolute URL, got %q", c.Origin)
		}
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.MatchWindow < 1 {
		return fmt.Errorf("match_window_min must be at least 1, got %d", c.MatchWindow)
	}
	if c.CacheVersion == "" {
		return errors.New("cache_version cannot be empty")
	}
	return nil
}

// OriginURL returns the parsed origin with a trailing slash, or nil when offline-only.
func (c Config) OriginURL() *url.URL {
	if c.Origin == "" {
		return nil
	}
	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u
}

// LockfilePath is where the background agent publishes its address.
func (c Config) LockfilePath() string {
	return filepath.Join(c.AgentDir, constants.AgentLockfileName)
}
