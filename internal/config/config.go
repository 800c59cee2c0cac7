package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds everything the server needs at startup. Values come
// from an optional YAML file (ROLLHOUSE_CONFIG) with environment
// variables taking precedence over the file.
type AppConfig struct {
	ListenAddr string
	AdminAddr  string

	RedisURL string

	// Bounded waits for the per-account connection lock. Unbind gets a
	// longer budget so disconnect cleanup is not starved by binds.
	BindLockWait   time.Duration
	UnbindLockWait time.Duration

	WriteTimeout time.Duration
	PingInterval time.Duration

	// Per-connection inbound command budget (requests per second, burst).
	RatePerSec float64
	RateBurst  int

	PresenceTTL time.Duration
}

// fileConfig mirrors AppConfig for YAML; durations are strings like
// "150ms" and parsed explicitly.
type fileConfig struct {
	ListenAddr     string  `yaml:"listen_addr"`
	AdminAddr      string  `yaml:"admin_addr"`
	RedisURL       string  `yaml:"redis_url"`
	BindLockWait   string  `yaml:"bind_lock_wait"`
	UnbindLockWait string  `yaml:"unbind_lock_wait"`
	WriteTimeout   string  `yaml:"write_timeout"`
	PingInterval   string  `yaml:"ping_interval"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	RateBurst      int     `yaml:"rate_burst"`
	PresenceTTL    string  `yaml:"presence_ttl"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:     ":8090",
		AdminAddr:      ":9090",
		BindLockWait:   150 * time.Millisecond,
		UnbindLockWait: 250 * time.Millisecond,
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		RatePerSec:     20,
		RateBurst:      40,
		PresenceTTL:    2 * time.Minute,
	}
}

func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("ROLLHOUSE_CONFIG")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_ADDR")); v != "" {
		cfg.AdminAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if d, ok := envDuration("BIND_LOCK_WAIT"); ok {
		cfg.BindLockWait = d
	}
	if d, ok := envDuration("UNBIND_LOCK_WAIT"); ok {
		cfg.UnbindLockWait = d
	}
	if d, ok := envDuration("WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = d
	}
	if d, ok := envDuration("PING_INTERVAL"); ok {
		cfg.PingInterval = d
	}
	if d, ok := envDuration("PRESENCE_TTL"); ok {
		cfg.PresenceTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("RATE_PER_SEC")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RatePerSec = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if cfg.BindLockWait <= 0 || cfg.UnbindLockWait <= 0 {
		return nil, errors.New("lock waits must be positive")
	}
	if cfg.UnbindLockWait < cfg.BindLockWait {
		return nil, errors.New("UNBIND_LOCK_WAIT must be >= BIND_LOCK_WAIT")
	}

	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.AdminAddr != "" {
		cfg.AdminAddr = fc.AdminAddr
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.RatePerSec > 0 {
		cfg.RatePerSec = fc.RatePerSec
	}
	if fc.RateBurst > 0 {
		cfg.RateBurst = fc.RateBurst
	}
	for _, f := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.BindLockWait, &cfg.BindLockWait},
		{fc.UnbindLockWait, &cfg.UnbindLockWait},
		{fc.WriteTimeout, &cfg.WriteTimeout},
		{fc.PingInterval, &cfg.PingInterval},
		{fc.PresenceTTL, &cfg.PresenceTTL},
	} {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration %q in config file", f.raw)
		}
		*f.dst = d
	}
	return nil
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
