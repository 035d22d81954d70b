package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	liststrings "whozin/pkg/platform/strings"
)

// Store backends for the action rate limiter.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// DefaultActionWindow is the observed minimum interval between two friend requests
// for the same target.
const DefaultActionWindow = 5 * time.Second

// Config is the full service configuration.
type Config struct {
	Server    Server
	Redirect  Redirect
	RateLimit RateLimit
	Redis     RedisConfig
	Database  DatabaseConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	LogLevel          string
	SessionSigningKey string
	SecureCookies     bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// WriteTimeout stays above the router's 30s per-request timeout so the
	// handler timeout answers first.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Redirect configures the post-auth redirect sanitizer.
type Redirect struct {
	// ExcludedPrefixes are gate routes that must never be a redirect target.
	ExcludedPrefixes []string
}

// RateLimit configures the action rate limiter.
type RateLimit struct {
	Store    string
	Disabled bool
	// Window applies to every action without an explicit entry in ActionWindows.
	Window        time.Duration
	ActionWindows map[string]time.Duration
}

// WindowFor returns the minimum interval for action.
func (r RateLimit) WindowFor(action string) time.Duration {
	if w, ok := r.ActionWindows[action]; ok {
		return w
	}
	return r.Window
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			LogLevel:          "info",
			SessionSigningKey: "dev-secret-key-change-in-production",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      35 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Redirect: Redirect{
			ExcludedPrefixes: []string{"/setup"},
		},
		RateLimit: RateLimit{
			Store:         StoreMemory,
			Window:        DefaultActionWindow,
			ActionWindows: map[string]time.Duration{},
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
		},
	}
}

// FromEnv builds the config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	cfg.Server.Addr = p.str("WHOZIN_ADDR", cfg.Server.Addr)
	cfg.Server.LogLevel = p.str("LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.SessionSigningKey = p.str("SESSION_SIGNING_KEY", cfg.Server.SessionSigningKey)
	cfg.Server.SecureCookies = p.boolean("SECURE_COOKIES", cfg.Server.SecureCookies)
	cfg.Server.ReadHeaderTimeout = p.duration("HTTP_READ_HEADER_TIMEOUT", cfg.Server.ReadHeaderTimeout)
	cfg.Server.ReadTimeout = p.duration("HTTP_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = p.duration("HTTP_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = p.duration("HTTP_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = p.duration("HTTP_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	if v, ok := lookup("EXCLUDED_REDIRECT_PREFIXES"); ok {
		cfg.Redirect.ExcludedPrefixes = liststrings.SplitList(v)
	}

	cfg.RateLimit.Store = strings.ToLower(p.str("RATE_LIMIT_STORE", cfg.RateLimit.Store))
	cfg.RateLimit.Disabled = p.boolean("RATE_LIMIT_DISABLED", cfg.RateLimit.Disabled)
	cfg.RateLimit.Window = p.duration("ACTION_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.ActionWindows = p.windows("ACTION_RATE_LIMIT_OVERRIDES")

	cfg.Redis.URL = p.str("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = p.integer("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.MinIdleConns = p.integer("REDIS_MIN_IDLE_CONNS", cfg.Redis.MinIdleConns)
	cfg.Redis.DialTimeout = p.duration("REDIS_DIAL_TIMEOUT", cfg.Redis.DialTimeout)
	cfg.Redis.ReadTimeout = p.duration("REDIS_READ_TIMEOUT", cfg.Redis.ReadTimeout)
	cfg.Redis.WriteTimeout = p.duration("REDIS_WRITE_TIMEOUT", cfg.Redis.WriteTimeout)

	cfg.Database.URL = p.str("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = p.integer("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("RATE_LIMIT_STORE=redis requires REDIS_URL")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("RATE_LIMIT_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STORE %q", c.RateLimit.Store)
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("ACTION_RATE_LIMIT_WINDOW must not be negative")
	}
	return nil
}

// parser keeps the first error so FromEnv reads linearly.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

// windows parses "action=duration" pairs, e.g. "friend_add_invite=10s,friend_add_manual=3s".
func (p *parser) windows(key string) map[string]time.Duration {
	out := map[string]time.Duration{}
	v, _ := p.lookup(key)
	for _, pair := range liststrings.SplitList(v) {
		action, raw, ok := strings.Cut(pair, "=")
		action = strings.TrimSpace(action)
		if !ok || action == "" {
			p.fail(key, fmt.Errorf("malformed entry %q", pair))
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil || d < 0 {
			p.fail(key, fmt.Errorf("bad duration for %s: %q", action, raw))
			continue
		}
		out[action] = d
	}
	return out
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
