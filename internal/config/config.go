// Package config loads the whitetemp server configuration from a TOML file.
//
// A missing file is not an error: the built-in defaults apply. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Backend names accepted in Config.Backend.
const (
	BackendFile  = "file"
	BackendBBolt = "bbolt"
)

// TokenEnv names the environment variable that supplies the admin API token.
const TokenEnv = "WHITETEMP_ADMIN_TOKEN"

// DefaultPath is where the server looks for its configuration.
const DefaultPath = "config/whitetemp.toml"

// Config is the server configuration.
type Config struct {
	// ListPath is the whitelist file (or BBolt database).
	ListPath string `toml:"list_path"`
	// Backend is "file" or "bbolt".
	Backend string `toml:"backend"`
	// Listen is the admin API address. Empty disables the API.
	Listen string `toml:"listen"`
	// ServerURL is where one-shot commands reach a running server's admin
	// API. Empty means http://<listen>, with an unspecified host replaced
	// by the loopback address.
	ServerURL string `toml:"server_url"`
	// AdminTokenFile holds the admin API bearer token. TokenEnv overrides it.
	AdminTokenFile string `toml:"admin_token_file"`
	LogLevel       string `toml:"log_level"`
	// RateLimit is the admin API's sustained requests per second; RateBurst its burst.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
	// TrustedProxies lists CIDRs (or bare addresses) whose forwarding
	// headers identify the real client for the admin auth lockout.
	TrustedProxies []string `toml:"trusted_proxies"`
	// AuditWebhookURL, when set, receives every admin API audit event as JSON.
	AuditWebhookURL string `toml:"audit_webhook_url"`
	// AuditWebhookHeader is sent with each webhook request, e.g.
	// "Authorization: Bearer xxx".
	AuditWebhookHeader string `toml:"audit_webhook_header"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListPath:  "config/whitetemp_list.json",
		Backend:   BackendFile,
		Listen:    "127.0.0.1:8765",
		LogLevel:  "info",
		RateLimit: 20,
		RateBurst: 50,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ListPath == "" {
		return errors.New("list_path must not be empty")
	}
	switch c.Backend {
	case BackendFile, BackendBBolt:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendFile, BackendBBolt, c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("rate_limit and rate_burst must be positive")
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server_url must be an http or https URL, got %q", c.ServerURL)
		}
	}
	if c.AuditWebhookURL != "" {
		u, err := url.Parse(c.AuditWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("audit_webhook_url must be an http or https URL, got %q", c.AuditWebhookURL)
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// AdminToken returns the admin API token from TokenEnv or AdminTokenFile,
// trimmed of surrounding whitespace. An empty result means no token is
// configured.
func (c *Config) AdminToken() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	if c.AdminTokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.AdminTokenFile)
	if err != nil {
		return "", fmt.Errorf("reading admin token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// AdminURL returns the base URL of the admin API that one-shot commands
// forward to, without a trailing slash. ok is false when neither ServerURL
// nor Listen is set.
func (c *Config) AdminURL() (base string, ok bool) {
	if c.ServerURL != "" {
		return strings.TrimSuffix(c.ServerURL, "/"), true
	}
	if c.Listen == "" {
		return "", false
	}
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return "", false
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), true
}

// Save writes c to path as TOML.
func Save(c *Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	return f.Close()
}
