package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Event source kinds.
const (
	SourceAPI      = "api"
	SourceICS      = "ics"
	SourcePostgres = "postgres"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Asia/Seoul"
	defaultPollInterval = "30s"
	defaultHorizonDays  = 7
	defaultLogLevel     = "info"
	defaultAPITimeout   = 10
	defaultRefreshRate  = 6
)

// APIConfig points at the calendar data API.
type APIConfig struct {
	// BaseURL is the API origin, e.g. "https://calendar.example.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token is the session bearer token. TokenFile, when set, wins and is
	// re-read every cycle so a login elsewhere takes effect without restart.
	Token          string `yaml:"token,omitempty" json:"-"`
	TokenFile      string `yaml:"token_file,omitempty" json:"token_file,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Category applies to events without a CATEGORIES property.
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// PostgresConfig selects the calendar_events table as the event source.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"-"`
	// OwnerID restricts events to one user; empty reads all rows.
	OwnerID string `yaml:"owner_id,omitempty" json:"owner_id,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the alert API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone event times are shown in (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// PollInterval is a Go duration string ("30s", "1m") between alert cycles.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// HorizonDays caps how far ahead an alert may refer to.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Source selects where events come from: api, ics or postgres.
	Source string `yaml:"source" json:"source"`

	API APIConfig `yaml:"api" json:"api"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// ICSCacheDir holds last-good ICS bodies and HTTP validators.
	ICSCacheDir string `yaml:"ics_cache_dir,omitempty" json:"ics_cache_dir,omitempty"`

	Postgres PostgresConfig `yaml:"postgres,omitempty" json:"postgres"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// RefreshPerMinute limits POST /api/refresh.
	RefreshPerMinute int `yaml:"refresh_per_minute" json:"refresh_per_minute"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		PollInterval: defaultPollInterval,
		HorizonDays:  defaultHorizonDays,
		LogLevel:     defaultLogLevel,
		Source:       SourceAPI,
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:3000",
			TimeoutSeconds: defaultAPITimeout,
		},
		ICS:              []ICSConfig{},
		RefreshPerMinute: defaultRefreshRate,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceAPI
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeout
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.RefreshPerMinute <= 0 {
		c.RefreshPerMinute = defaultRefreshRate
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch c.Source {
	case SourceAPI:
		if c.API.BaseURL == "" {
			errs = append(errs, errors.New("api.base_url is required for source api"))
		}
	case SourceICS:
		if len(c.ICS) == 0 {
			errs = append(errs, errors.New("at least one ics entry is required for source ics"))
		}
		for _, s := range c.ICS {
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("ics %s: url is empty", s.ID))
			}
		}
	case SourcePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for source postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth needs both username and password"))
	}
	return errors.Join(errs...)
}

// Poll returns the poll interval as a duration.
func (c *Config) Poll() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultPollInterval)
	}
	return d
}

// Horizon returns the alert horizon as a duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// Location resolves Timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller may still run on defaults.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".bizcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
