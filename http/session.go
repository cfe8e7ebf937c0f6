package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"nicotools/internal/storage"
)

// SessionManager owns the cookie jar shared by every client it hands out.
type SessionManager struct {
	jar    http.CookieJar
	mu     sync.RWMutex
	config SessionConfig
}

// SessionConfig configures session behaviour.
type SessionConfig struct {
	// PersistCookies saves the jar to CookieFile on Close and loads it on start.
	PersistCookies bool
	CookieFile     string

	// NetscapeFile is an optional browser-exported cookies.txt loaded on start.
	NetscapeFile string

	UserAgent    string
	RefererURL   string
	HeadersToAdd map[string]string

	// CookieURLs are the origins whose cookies are persisted.
	CookieURLs []string
}

// DefaultSessionConfig returns defaults for the video site.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 nicotools/1.0",
		RefererURL:   "https://www.nicovideo.jp/",
		HeadersToAdd: make(map[string]string),
		CookieURLs: []string{
			"https://www.nicovideo.jp/",
			"https://secure.nicovideo.jp/",
			"https://flapi.nicovideo.jp/",
			"https://nmsg.nicovideo.jp/",
			"https://ext.nicovideo.jp/",
		},
	}
}

// NewSessionManager creates a session and loads any configured cookie files.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	defaults := DefaultSessionConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.HeadersToAdd == nil {
		cfg.HeadersToAdd = make(map[string]string)
	}
	if len(cfg.CookieURLs) == 0 {
		cfg.CookieURLs = defaults.CookieURLs
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	sm := &SessionManager{jar: jar, config: cfg}

	if cfg.PersistCookies && cfg.CookieFile != "" {
		if err := sm.LoadCookies(); err != nil {
			return nil, err
		}
	}
	if cfg.NetscapeFile != "" {
		f, err := os.Open(cfg.NetscapeFile)
		if err != nil {
			return nil, fmt.Errorf("open cookies.txt: %w", err)
		}
		defer f.Close()
		if _, err := sm.ImportNetscape(f); err != nil {
			return nil, err
		}
	}

	return sm, nil
}

// GetClient returns a client that shares this session's cookies and headers.
func (sm *SessionManager) GetClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return newClient(cfg, sm.jar, sm)
}

// AddHeader adds a header sent with every request.
func (sm *SessionManager) AddHeader(key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.config.HeadersToAdd[key] = value
}

// GetHeaders returns the headers to send with every request.
func (sm *SessionManager) GetHeaders() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	headers := make(map[string]string, len(sm.config.HeadersToAdd)+2)
	for k, v := range sm.config.HeadersToAdd {
		headers[k] = v
	}
	headers["User-Agent"] = sm.config.UserAgent
	if sm.config.RefererURL != "" {
		headers["Referer"] = sm.config.RefererURL
	}
	return headers
}

// Cookies returns the cookies the jar would send to rawURL.
func (sm *SessionManager) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return sm.jar.Cookies(u)
}

// savedCookies is the on-disk layout: origin -> cookies.
type savedCookies map[string][]*http.Cookie

// SaveCookies writes the jar to CookieFile when persistence is enabled.
func (sm *SessionManager) SaveCookies() error {
	if !sm.config.PersistCookies || sm.config.CookieFile == "" {
		return nil
	}

	sm.mu.RLock()
	out := make(savedCookies)
	for _, origin := range sm.config.CookieURLs {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		if cookies := sm.jar.Cookies(u); len(cookies) > 0 {
			out[origin] = cookies
		}
	}
	sm.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(sm.config.CookieFile), 0o700); err != nil {
		return fmt.Errorf("create cookie directory: %w", err)
	}
	if err := storage.WriteFile(sm.config.CookieFile, data); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	return os.Chmod(sm.config.CookieFile, 0o600)
}

// LoadCookies reads CookieFile into the jar. A missing file is not an error.
func (sm *SessionManager) LoadCookies() error {
	if !sm.config.PersistCookies || sm.config.CookieFile == "" {
		return nil
	}

	data, err := os.ReadFile(sm.config.CookieFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}

	var saved savedCookies
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for origin, cookies := range saved {
		if u, err := url.Parse(origin); err == nil {
			sm.jar.SetCookies(u, cookies)
		}
	}
	return nil
}

// ImportNetscape loads a Netscape cookies.txt stream into the jar and returns
// how many cookies were accepted. Expired entries are skipped.
func (sm *SessionManager) ImportNetscape(r io.Reader) (int, error) {
	cookies, err := ParseNetscape(r)
	if err != nil {
		return 0, fmt.Errorf("parse cookies.txt: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	n := 0
	for _, nc := range cookies {
		if !nc.Cookie.Expires.IsZero() && nc.Cookie.Expires.Before(now) {
			continue
		}
		scheme := "http"
		if nc.Cookie.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: nc.Host, Path: nc.Cookie.Path}
		sm.jar.SetCookies(u, []*http.Cookie{nc.Cookie})
		n++
	}
	return n, nil
}

// NetscapeCookie is one cookies.txt line: the cookie plus the host it was
// recorded for.
type NetscapeCookie struct {
	Host   string
	Cookie *http.Cookie
}

// ParseNetscape parses the cookies.txt format exported by browsers:
// domain, include-subdomains flag, path, secure, expiry, name, value.
func ParseNetscape(r io.Reader) ([]NetscapeCookie, error) {
	var out []NetscapeCookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		host := strings.TrimPrefix(parts[0], ".")
		c := &http.Cookie{
			Name:     parts[5],
			Value:    parts[6],
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if strings.EqualFold(parts[1], "TRUE") {
			c.Domain = host
		}
		if expires, err := strconv.ParseInt(parts[4], 10, 64); err == nil && expires > 0 {
			c.Expires = time.Unix(expires, 0)
		}
		out = append(out, NetscapeCookie{Host: host, Cookie: c})
	}

	return out, scanner.Err()
}

// ClearCookies drops every cookie. Clients obtained earlier keep the old jar.
func (sm *SessionManager) ClearCookies() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.jar = jar
	return nil
}

// Close persists cookies when enabled.
func (sm *SessionManager) Close() error {
	return sm.SaveCookies()
}
