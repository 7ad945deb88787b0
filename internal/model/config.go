package model

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// envPrefix is prepended to every environment override, e.g.
// FEED2IMAP_IMAP_PASSWORD overrides imap.password.
const envPrefix = "FEED2IMAP"

// IMAPConfig holds the mailbox connection and recipient settings.
type IMAPConfig struct {
	// Host is the IMAP server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port (993 for implicit TLS).
	Port int `mapstructure:"port" yaml:"port"`

	Username string `mapstructure:"username" yaml:"username"`

	// Password is the plain account password. Prefer PasswordRef.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// PasswordRef points at a stored credential, e.g. "keyring:imap-user@example.com".
	PasswordRef string `mapstructure:"password_ref" yaml:"password_ref,omitempty"`

	// TLS selects implicit TLS; false upgrades a plain connection with STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Folder is the mailbox every entry is appended to.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// Name and Email form the To header of every composed message.
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// FeedConfig is a single subscription.
type FeedConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// MaxConcurrency caps the number of feeds processed at once. Zero means
	// one goroutine per feed.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	MailboxTimeout time.Duration `mapstructure:"mailbox_timeout" yaml:"mailbox_timeout"`

	// FetchRPS limits outgoing feed requests per second across all feeds.
	// Zero disables the limit.
	FetchRPS float64 `mapstructure:"fetch_rps" yaml:"fetch_rps"`

	UserAgent   string `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodySize int64  `mapstructure:"max_body_size" yaml:"max_body_size"`

	// SanitizeHTML strips scripts and unsafe markup from entry bodies.
	SanitizeHTML bool `mapstructure:"sanitize_html" yaml:"sanitize_html"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP  IMAPConfig   `mapstructure:"imap" yaml:"imap"`
	Feeds []FeedConfig `mapstructure:"feeds" yaml:"feeds"`
	Sync  SyncConfig   `mapstructure:"sync" yaml:"sync"`

	// HistoryDB is the SQLite run history path. Empty disables history.
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`

	// MetricsFile, when set, receives Prometheus text-format metrics after
	// every sync run.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/feed2imap, or the working directory when the
// home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "feed2imap")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/feed2imap/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a configuration with every default applied and
// no feeds.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Port:   993,
			TLS:    true,
			Folder: "INBOX",
		},
		Feeds: []FeedConfig{},
		Sync: SyncConfig{
			FetchTimeout:   30 * time.Second,
			MailboxTimeout: 60 * time.Second,
			UserAgent:      "feed2imap/1.0",
			MaxBodySize:    5 << 20,
		},
		HistoryDB: filepath.Join(ConfigDir(), "history.db"),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults registers every default with v so that missing keys resolve
// and environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()

	v.SetDefault("imap.host", d.IMAP.Host)
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.username", d.IMAP.Username)
	v.SetDefault("imap.password", d.IMAP.Password)
	v.SetDefault("imap.password_ref", d.IMAP.PasswordRef)
	v.SetDefault("imap.tls", d.IMAP.TLS)
	v.SetDefault("imap.folder", d.IMAP.Folder)
	v.SetDefault("imap.name", d.IMAP.Name)
	v.SetDefault("imap.email", d.IMAP.Email)
	v.SetDefault("sync.max_concurrency", d.Sync.MaxConcurrency)
	v.SetDefault("sync.fetch_timeout", d.Sync.FetchTimeout)
	v.SetDefault("sync.mailbox_timeout", d.Sync.MailboxTimeout)
	v.SetDefault("sync.fetch_rps", d.Sync.FetchRPS)
	v.SetDefault("sync.user_agent", d.Sync.UserAgent)
	v.SetDefault("sync.max_body_size", d.Sync.MaxBodySize)
	v.SetDefault("sync.sanitize_html", d.Sync.SanitizeHTML)
	v.SetDefault("history_db", d.HistoryDB)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration with
// environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Feeds == nil {
		cfg.Feeds = []FeedConfig{}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range configMap(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// WriteConfig writes cfg as YAML to w, in the same shape SaveConfig uses.
func WriteConfig(w io.Writer, cfg *AppConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(configMap(cfg)); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// configMap flattens cfg into the document layout. Durations are written
// in their string form so the file stays editable.
func configMap(cfg *AppConfig) map[string]any {
	return map[string]any{
		"imap":  cfg.IMAP,
		"feeds": cfg.Feeds,
		"sync": map[string]any{
			"max_concurrency": cfg.Sync.MaxConcurrency,
			"fetch_timeout":   cfg.Sync.FetchTimeout.String(),
			"mailbox_timeout": cfg.Sync.MailboxTimeout.String(),
			"fetch_rps":       cfg.Sync.FetchRPS,
			"user_agent":      cfg.Sync.UserAgent,
			"max_body_size":   cfg.Sync.MaxBodySize,
			"sanitize_html":   cfg.Sync.SanitizeHTML,
		},
		"history_db":   cfg.HistoryDB,
		"metrics_file": cfg.MetricsFile,
		"log":          cfg.Log,
	}
}

// Validate reports the settings a sync run cannot do without.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.IMAP.Host == "" {
		missing = append(missing, "imap.host")
	}
	if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
		missing = append(missing, "imap.port")
	}
	if c.IMAP.Username == "" {
		missing = append(missing, "imap.username")
	}
	if c.IMAP.Folder == "" {
		missing = append(missing, "imap.folder")
	}
	if c.IMAP.Email == "" {
		missing = append(missing, "imap.email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid configuration, missing or invalid: %s",
			strings.Join(missing, ", "))
	}
	return nil
}

// AddFeed appends a subscription. It rejects URLs that are not absolute
// http(s) URLs and URLs that are already subscribed.
func (c *AppConfig) AddFeed(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid feed url %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid feed url %q: must be an absolute http(s) url", rawURL)
	}
	if c.HasFeed(rawURL) {
		return fmt.Errorf("feed %s is already subscribed", rawURL)
	}
	c.Feeds = append(c.Feeds, FeedConfig{URL: rawURL})
	return nil
}

// RemoveFeed drops a subscription and reports whether it existed.
func (c *AppConfig) RemoveFeed(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	for i, f := range c.Feeds {
		if f.URL == rawURL {
			c.Feeds = append(c.Feeds[:i], c.Feeds[i+1:]...)
			return true
		}
	}
	return false
}

// HasFeed reports whether rawURL is already subscribed.
func (c *AppConfig) HasFeed(rawURL string) bool {
	for _, f := range c.Feeds {
		if f.URL == rawURL {
			return true
		}
	}
	return false
}
