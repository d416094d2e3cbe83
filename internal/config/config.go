// Package config loads and hot-reloads the gateway's process-wide
// configuration: a YAML file overlaid by environment variables, watched
// with fsnotify so pool-mode and quota constants apply without a restart.
// Adapted from the teacher's internal/config env-merge pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolMode is the process-wide credential-sharing policy.
type PoolMode string

const (
	PoolPrivate     PoolMode = "private"
	PoolTier3Shared PoolMode = "tier3_shared"
	PoolFullShared  PoolMode = "full_shared"
)

// OAuthClient holds a client-id/secret pair for one upstream variant.
type OAuthClient struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// QuotaConfig carries the per-model-class quota-formula constants from
// SPEC_FULL.md §4.5/§4.6.
type QuotaConfig struct {
	FlashPerCredential int `yaml:"flash_per_credential"`
	NoCredFlash        int `yaml:"no_cred_flash"`
	ProPerCredential   int `yaml:"pro_per_credential"`
	Tier3PerCredential int `yaml:"tier3_per_credential"`
	NoCredPro          int `yaml:"no_cred_pro"`
	DailyQuota         int `yaml:"daily_quota"`
	BaseRPM            int `yaml:"base_rpm"`
	ContributorRPM     int `yaml:"contributor_rpm"`
}

// CooldownConfig carries the per-model-group cooldown durations (§4.5).
type CooldownConfig struct {
	Flash time.Duration `yaml:"cd_flash"`
	Pro   time.Duration `yaml:"cd_pro"`
	Tier3 time.Duration `yaml:"cd_30"`
}

// Config is the fully-resolved, process-wide configuration snapshot.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	ListenAddr  string `yaml:"listen_addr"`
	Debug       bool   `yaml:"debug"`
	LogFile     string `yaml:"log_file"`

	CryptoSecret string `yaml:"crypto_secret"`

	PoolMode    PoolMode `yaml:"pool_mode"`
	MaxRetries  int      `yaml:"max_retries"`
	ImageDir    string   `yaml:"image_dir"`

	Quota    QuotaConfig    `yaml:"quota"`
	Cooldown CooldownConfig `yaml:"cooldown"`

	OAuthDefault  OAuthClient `yaml:"oauth_default"`
	OAuthUpstreamB OAuthClient `yaml:"oauth_upstream_b"`

	RedisURL string `yaml:"redis_url"` // read from config and REDIS_URL; no component uses it
}

// Defaults returns the built-in configuration baseline, overridden by file
// and environment in Load.
func Defaults() Config {
	return Config{
		ListenAddr: ":8080",
		PoolMode:   PoolPrivate,
		MaxRetries: 3,
		ImageDir:   "./data/images",
		Quota: QuotaConfig{
			FlashPerCredential: 1500,
			NoCredFlash:        100,
			ProPerCredential:   300,
			Tier3PerCredential: 50,
			NoCredPro:          20,
			DailyQuota:         5000,
			BaseRPM:            30,
			ContributorRPM:     60,
		},
		Cooldown: CooldownConfig{
			Flash: 5 * time.Second,
			Pro:   10 * time.Second,
			Tier3: 15 * time.Second,
		},
	}
}

// Load reads the YAML file at path (if non-empty and present), applies it on
// top of Defaults(), then overlays recognised environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverlay(&cfg)

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.CryptoSecret == "" {
		return cfg, fmt.Errorf("config: CRYPTO_SECRET is required")
	}
	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("DATABASE_URL", &cfg.DatabaseURL)
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("LOG_FILE", &cfg.LogFile)
	str("CRYPTO_SECRET", &cfg.CryptoSecret)
	str("IMAGE_DIR", &cfg.ImageDir)
	str("REDIS_URL", &cfg.RedisURL)
	boolean("DEBUG", &cfg.Debug)
	num("MAX_RETRIES", &cfg.MaxRetries)

	if v := os.Getenv("POOL_MODE"); v != "" {
		cfg.PoolMode = PoolMode(v)
	}

	num("QUOTA_FLASH_PER_CRED", &cfg.Quota.FlashPerCredential)
	num("QUOTA_NO_CRED_FLASH", &cfg.Quota.NoCredFlash)
	num("QUOTA_PRO_PER_CRED", &cfg.Quota.ProPerCredential)
	num("QUOTA_TIER3_PER_CRED", &cfg.Quota.Tier3PerCredential)
	num("QUOTA_NO_CRED_PRO", &cfg.Quota.NoCredPro)
	num("QUOTA_DAILY", &cfg.Quota.DailyQuota)
	num("QUOTA_BASE_RPM", &cfg.Quota.BaseRPM)
	num("QUOTA_CONTRIBUTOR_RPM", &cfg.Quota.ContributorRPM)

	dur("COOLDOWN_FLASH", &cfg.Cooldown.Flash)
	dur("COOLDOWN_PRO", &cfg.Cooldown.Pro)
	dur("COOLDOWN_TIER3", &cfg.Cooldown.Tier3)

	str("OAUTH_CLIENT_ID", &cfg.OAuthDefault.ClientID)
	str("OAUTH_CLIENT_SECRET", &cfg.OAuthDefault.ClientSecret)
	str("OAUTH_UPSTREAM_B_CLIENT_ID", &cfg.OAuthUpstreamB.ClientID)
	str("OAUTH_UPSTREAM_B_CLIENT_SECRET", &cfg.OAuthUpstreamB.ClientSecret)
}

// Store holds a live, swappable Config. Get and Set share a sync.RWMutex;
// reload notifications go out through the events hub from WatchFile, not
// from Store.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore wraps an initial Config in a Store.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration snapshot.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the current configuration snapshot, for use by the
// fsnotify-driven reload loop.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}
