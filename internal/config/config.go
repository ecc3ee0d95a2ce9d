// Package config reads the site's settings from the environment. Secrets are
// never required at load time: a missing provider key only disables the
// feature that needs it, and that feature reports failure per request.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http/httpproxy"
)

type Stats struct {
	BaseURL  string
	Identity string
	CacheTTL time.Duration
}

type EmailJS struct {
	APIURL     string
	PublicKey  string
	PrivateKey string
	ServiceID  string
	TemplateID string
}

type SMTP struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

type Contact struct {
	Provider      string // "emailjs" or "smtp"
	RecipientName string
	OfflineDemo   bool
	ProbeAddr     string
	EmailJS       EmailJS
	SMTP          SMTP
}

type Admin struct {
	Username     string
	PasswordHash string
	HashKey      string
	BlockKey     string
}

type Config struct {
	Port            string
	LogLevel        string
	UpstreamTimeout time.Duration
	ContentFile     string
	TemplatesDir    string
	DatabasePath    string

	Stats   Stats
	Contact Contact
	Admin   Admin
}

const (
	DefaultStatsBaseURL    = "https://leetcode-stats-api.herokuapp.com"
	DefaultEmailJSAPIURL   = "https://api.emailjs.com"
	DefaultUpstreamTimeout = 10 * time.Second
)

// Load reads .env files (when present) into the process environment and
// builds a Config from it. With no arguments ".env" is tried.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, usually os.LookupEnv.
// Blank values fall back to defaults except where noted.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return def
	}

	timeout, err := duration(get("UPSTREAM_TIMEOUT", ""), DefaultUpstreamTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("config: UPSTREAM_TIMEOUT: %w", err)
	}
	ttl, err := duration(get("STATS_CACHE_TTL", ""), 0)
	if err != nil {
		return Config{}, fmt.Errorf("config: STATS_CACHE_TTL: %w", err)
	}
	demo, err := boolean(get("CONTACT_OFFLINE_DEMO", ""))
	if err != nil {
		return Config{}, fmt.Errorf("config: CONTACT_OFFLINE_DEMO: %w", err)
	}

	cfg := Config{
		Port:            get("PORT", "8080"),
		LogLevel:        get("LOG_LEVEL", "info"),
		UpstreamTimeout: timeout,
		ContentFile:     get("CONTENT_FILE", "content.yaml"),
		TemplatesDir:    get("TEMPLATES_DIR", "templates"),
		DatabasePath:    get("DATABASE_PATH", "folio.db"),
		Stats: Stats{
			BaseURL:  strings.TrimRight(get("STATS_BASE_URL", DefaultStatsBaseURL), "/"),
			Identity: get("STATS_IDENTITY", ""),
			CacheTTL: ttl,
		},
		Contact: Contact{
			Provider:      strings.ToLower(get("MAIL_PROVIDER", "emailjs")),
			RecipientName: get("CONTACT_RECIPIENT_NAME", ""),
			OfflineDemo:   demo,
			EmailJS: EmailJS{
				APIURL:     strings.TrimRight(get("EMAILJS_API_URL", DefaultEmailJSAPIURL), "/"),
				PublicKey:  get("EMAILJS_PUBLIC_KEY", ""),
				PrivateKey: get("EMAILJS_PRIVATE_KEY", ""),
				ServiceID:  get("EMAILJS_SERVICE_ID", ""),
				TemplateID: get("EMAILJS_TEMPLATE_ID", ""),
			},
			SMTP: SMTP{
				Host: get("SMTP_HOST", "smtp.gmail.com"),
				Port: get("SMTP_PORT", "587"),
				User: get("SMTP_USER", ""),
				Pass: get("SMTP_PASS", ""),
				To:   get("TO_EMAIL", ""),
			},
		},
		Admin: Admin{
			Username:     get("ADMIN_USERNAME", "admin"),
			PasswordHash: get("ADMIN_PASSWORD_HASH", ""),
			HashKey:      get("SESSION_HASH_KEY", ""),
			BlockKey:     get("SESSION_BLOCK_KEY", ""),
		},
	}
	cfg.Contact.ProbeAddr, err = probeAddr(lookup, cfg.Contact)
	if err != nil {
		return Config{}, fmt.Errorf("config: CONNECTIVITY_PROBE: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// AdminEnabled reports whether admin login can work at all.
func (c Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != "" && c.Admin.HashKey != ""
}

// probeAddr is the host:port the connectivity check dials before a send.
// Empty disables the check, which happens for CONNECTIVITY_PROBE=off, for a
// CONNECTIVITY_PROBE_ADDR that is set but blank, and when the provider is
// reached through an HTTP proxy that a direct dial would bypass.
func probeAddr(lookup func(string) (string, bool), c Contact) (string, error) {
	if v, ok := lookup("CONNECTIVITY_PROBE"); ok {
		on, err := toggle(strings.TrimSpace(v))
		if err != nil {
			return "", err
		}
		if !on {
			return "", nil
		}
	}
	if v, ok := lookup("CONNECTIVITY_PROBE_ADDR"); ok {
		return strings.TrimSpace(v), nil
	}
	if c.Provider != "smtp" && proxied(lookup, c.EmailJS.APIURL) {
		return "", nil
	}
	return c.defaultProbeAddr(), nil
}

// proxied reports whether requests to rawURL go through a proxy under the
// same rules http.ProxyFromEnvironment applies.
func proxied(lookup func(string) (string, bool), rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	env := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v
			}
		}
		return ""
	}
	pc := httpproxy.Config{
		HTTPProxy:  env("HTTP_PROXY", "http_proxy"),
		HTTPSProxy: env("HTTPS_PROXY", "https_proxy"),
		NoProxy:    env("NO_PROXY", "no_proxy"),
	}
	p, err := pc.ProxyFunc()(u)
	return err == nil && p != nil
}

func (c Contact) defaultProbeAddr() string {
	if c.Provider == "smtp" {
		return net.JoinHostPort(c.SMTP.Host, c.SMTP.Port)
	}
	u, err := url.Parse(c.EmailJS.APIURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func toggle(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func boolean(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
