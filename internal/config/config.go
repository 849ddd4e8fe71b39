// Package config loads the service configuration from a YAML file with
// MESHADMIN_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meshadmin.org/internal/rbac"
)

// Config is the full service configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Postgres PostgresConfig `yaml:"postgres"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Auth     AuthConfig     `yaml:"auth"`
	// DirectoryGroups maps identity-provider group names to role names.
	DirectoryGroups map[string]string `yaml:"directory_groups"`
	RateLimit       RateLimitConfig   `yaml:"rate_limit"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AuthConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type RateLimitConfig struct {
	Burst     int `yaml:"burst"`
	PerSecond int `yaml:"per_second"`
}

// Load reads the YAML file at path (optional, "" skips it), applies
// environment overrides, fills defaults, and validates.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Listen, "MESHADMIN_LISTEN")
	override(&c.Postgres.DSN, "MESHADMIN_PG_DSN")
	override(&c.Gateway.BaseURL, "MESHADMIN_GATEWAY_URL")
	override(&c.Gateway.APIKey, "MESHADMIN_GATEWAY_KEY")
	override(&c.Auth.Secret, "MESHADMIN_AUTH_SECRET")
	override(&c.Auth.Issuer, "MESHADMIN_AUTH_ISSUER")
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 30
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "meshadmin"
	}
	if c.Auth.SessionTTLMinutes <= 0 {
		c.Auth.SessionTTLMinutes = 15
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = 10
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("config: gateway base_url is required")
	}
	if strings.TrimSpace(c.Gateway.APIKey) == "" {
		return errors.New("config: gateway api_key is required")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("config: auth secret is required")
	}
	for group, roleName := range c.DirectoryGroups {
		if _, err := rbac.ParseRole(roleName); err != nil {
			return fmt.Errorf("config: directory group %q: %w", group, err)
		}
	}
	return nil
}

// GatewayTimeout returns the per-call gateway timeout.
func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// SessionTTL returns the session token lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// GroupToRole returns the validated group-to-role mapping.
func (c Config) GroupToRole() map[string]rbac.Role {
	out := make(map[string]rbac.Role, len(c.DirectoryGroups))
	for group, roleName := range c.DirectoryGroups {
		role, err := rbac.ParseRole(roleName)
		if err != nil {
			continue // validate() already rejected these at load time
		}
		out[group] = role
	}
	return out
}
