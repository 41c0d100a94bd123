// Package config loads and validates the tap configuration.
//
// Files may be JSON (the Singer convention) or YAML; both are decoded with
// yaml.v3 since every JSON document is also valid YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tap-appstore/internal/model"
	"tap-appstore/pkg/utils"
)

// ErrInvalid marks configuration errors. They are fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultBaseURL          = "https://api.appstoreconnect.apple.com/v1"
	DefaultRequestTimeout   = 60 * time.Second
	DefaultSyncMaxAttempts  = 3
	DefaultSyncRetryBackoff = 10 * time.Second
	DefaultUserAgent        = "tap-appstore/1.0"
)

// Config holds the full tap configuration.
type Config struct {
	KeyID      string       `yaml:"key_id"`
	KeyFile    string       `yaml:"key_file"`
	PrivateKey string       `yaml:"private_key"` // inline PEM, wins over key_file
	IssuerID   string       `yaml:"issuer_id"`
	Vendor     VendorNumber `yaml:"vendor"`
	StartDate  string       `yaml:"start_date"`

	BaseURL          string `yaml:"base_url"`
	RequestTimeout   string `yaml:"request_timeout"`
	UserAgent        string `yaml:"user_agent"`
	SyncMaxAttempts  int    `yaml:"sync_max_attempts"`
	SyncRetryBackoff string `yaml:"sync_retry_backoff"`
	LookbackDays     int    `yaml:"lookback_days"`
}

// VendorNumber accepts the vendor account id as a string or a bare number.
type VendorNumber string

// UnmarshalYAML keeps the scalar text as written.
func (v *VendorNumber) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("vendor must be a scalar, got %v", node.Tag)
	}
	*v = VendorNumber(strings.TrimSpace(node.Value))
	return nil
}

// Default returns a config with every optional field set.
func Default() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		RequestTimeout:   DefaultRequestTimeout.String(),
		UserAgent:        DefaultUserAgent,
		SyncMaxAttempts:  DefaultSyncMaxAttempts,
		SyncRetryBackoff: DefaultSyncRetryBackoff.String(),
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config %s: %v", ErrInvalid, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required keys are present and values are sane.
func (c *Config) Validate() error {
	var missing []string
	if c.KeyID == "" {
		missing = append(missing, "key_id")
	}
	if c.KeyFile == "" && c.PrivateKey == "" {
		missing = append(missing, "key_file")
	}
	if c.IssuerID == "" {
		missing = append(missing, "issuer_id")
	}
	if c.Vendor == "" {
		missing = append(missing, "vendor")
	}
	if c.StartDate == "" {
		missing = append(missing, "start_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if _, err := c.StartTime(); err != nil {
		return err
	}
	if c.SyncMaxAttempts <= 0 {
		return fmt.Errorf("%w: sync_max_attempts must be > 0", ErrInvalid)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("%w: lookback_days must be >= 0", ErrInvalid)
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

// StartTime parses start_date (YYYY-MM-DDTHH:MM:SSZ or any RFC 3339 time).
func (c *Config) StartTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_date %q is not %s", ErrInvalid, c.StartDate, model.BookmarkLayout)
	}
	return t.UTC(), nil
}

// KeyMaterial returns the PEM encoded private key.
func (c *Config) KeyMaterial() ([]byte, error) {
	if c.PrivateKey != "" {
		return []byte(c.PrivateKey), nil
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read key_file: %v", ErrInvalid, err)
	}
	return data, nil
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return utils.ParseDuration(c.RequestTimeout, DefaultRequestTimeout)
}

// Retry is the whole-sync retry policy.
func (c *Config) Retry() model.RetryConfig {
	return model.RetryConfig{
		MaxAttempts: c.SyncMaxAttempts,
		Backoff:     utils.ParseDuration(c.SyncRetryBackoff, DefaultSyncRetryBackoff),
	}
}
