// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that reads "1.5s" style strings from JSON as
// well as plain nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %s", b)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config holds all application configuration.
type Config struct {
	// Account credentials. Needed by the video, comment and mylist commands.
	Mail     string `json:"mail"`
	Password string `json:"-"`

	// CookieFile persists the session jar between runs when set.
	CookieFile string `json:"cookie_file"`
	// NetscapeCookies is a browser-exported cookies.txt used instead of logging in.
	NetscapeCookies string `json:"netscape_cookies"`

	// Destination is the default download directory.
	Destination string `json:"destination"`

	LogLevel string `json:"log_level"`

	RequestTimeout Duration `json:"request_timeout"`
	ConnectTimeout Duration `json:"connect_timeout"`
	ReadTimeout    Duration `json:"read_timeout"`

	MaxRetries        int      `json:"max_retries"`
	InitialBackoff    Duration `json:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`

	// Pauses between consecutive items of one batch.
	VideoInterval   Duration `json:"video_interval"`
	CommentInterval Duration `json:"comment_interval"`
	AddInterval     Duration `json:"add_interval"`

	// AccessLockWait is how long to back off when the site reports the
	// account as temporarily locked; AccessLockRetries bounds the attempts.
	AccessLockWait    Duration `json:"access_lock_wait"`
	AccessLockRetries int      `json:"access_lock_retries"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Destination:       ".",
		LogLevel:          "info",
		RequestTimeout:    Duration(30 * time.Second),
		ConnectTimeout:    Duration(10 * time.Second),
		ReadTimeout:       Duration(30 * time.Second),
		MaxRetries:        3,
		InitialBackoff:    Duration(1 * time.Second),
		MaxBackoff:        Duration(15 * time.Second),
		BackoffMultiplier: 2.0,
		VideoInterval:     Duration(1 * time.Second),
		CommentInterval:   Duration(1500 * time.Millisecond),
		AddInterval:       Duration(500 * time.Millisecond),
		AccessLockWait:    Duration(8 * time.Second),
		AccessLockRetries: 3,
	}
}

// Load loads configuration.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(searchPaths()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := cfg.loadFromEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{"nicotools.json"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "nicotools", "nicotools.json"))
	}
	return paths
}

// loadFromFile reads the first config file that exists.
func (c *Config) loadFromFile(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// loadFromEnv overrides fields from NICOTOOLS_* variables.
func (c *Config) loadFromEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"NICOTOOLS_MAIL":             &c.Mail,
		"NICOTOOLS_PASSWORD":         &c.Password,
		"NICOTOOLS_COOKIE_FILE":      &c.CookieFile,
		"NICOTOOLS_NETSCAPE_COOKIES": &c.NetscapeCookies,
		"NICOTOOLS_DEST":             &c.Destination,
		"NICOTOOLS_LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"NICOTOOLS_REQUEST_TIMEOUT":  &c.RequestTimeout,
		"NICOTOOLS_CONNECT_TIMEOUT":  &c.ConnectTimeout,
		"NICOTOOLS_READ_TIMEOUT":     &c.ReadTimeout,
		"NICOTOOLS_INITIAL_BACKOFF":  &c.InitialBackoff,
		"NICOTOOLS_MAX_BACKOFF":      &c.MaxBackoff,
		"NICOTOOLS_VIDEO_INTERVAL":   &c.VideoInterval,
		"NICOTOOLS_COMMENT_INTERVAL": &c.CommentInterval,
		"NICOTOOLS_ADD_INTERVAL":     &c.AddInterval,
		"NICOTOOLS_ACCESS_LOCK_WAIT": &c.AccessLockWait,
	}
	for key, dst := range durations {
		v := getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
	}

	ints := map[string]*int{
		"NICOTOOLS_MAX_RETRIES":         &c.MaxRetries,
		"NICOTOOLS_ACCESS_LOCK_RETRIES": &c.AccessLockRetries,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 || c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1")
	}
	if c.VideoInterval < 0 || c.CommentInterval < 0 || c.AddInterval < 0 || c.AccessLockWait < 0 {
		return fmt.Errorf("intervals must be non-negative")
	}
	if c.AccessLockRetries < 1 {
		return fmt.Errorf("access_lock_retries must be at least 1")
	}
	return nil
}

// HasCredentials reports whether a login can be attempted.
func (c *Config) HasCredentials() bool {
	return c.Mail != "" && c.Password != ""
}
