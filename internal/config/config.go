// Copyright 2025 Phillip Lindsay
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads tokenctl settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is given no explicit path.
const DefaultPath = "config.yaml"

// Revocation backends.
const (
	BackendNone   = "none"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	Token      TokenConfig      `yaml:"token"`
	Encoder    EncoderConfig    `yaml:"encoder"`
	Claims     ClaimsConfig     `yaml:"claims"`
	Revocation RevocationConfig `yaml:"revocation"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// TokenConfig controls the manager.
type TokenConfig struct {
	TTL           int    `yaml:"ttl"` // seconds
	UserClaim     string `yaml:"userClaim"`
	IdentityField string `yaml:"identityField"`
}

// EncoderConfig selects the token format and keys. Key files are PEM or raw.
type EncoderConfig struct {
	Type           string `yaml:"type"`
	Algorithm      string `yaml:"algorithm"`
	SecretKey      string `yaml:"secretKey"`
	PrivateKeyFile string `yaml:"privateKeyFile"`
	PublicKeyFile  string `yaml:"publicKeyFile"`
	KeyID          string `yaml:"keyId"`
	Leeway         int    `yaml:"leeway"` // seconds
}

// ClaimsConfig controls registered claims added on create and checked on decode.
type ClaimsConfig struct {
	Issuer         string   `yaml:"issuer"`
	Audience       []string `yaml:"audience"`
	RequireTokenID bool     `yaml:"requireTokenId"`
}

// RevocationConfig selects the revocation store.
type RevocationConfig struct {
	Backend string      `yaml:"backend"`
	DSN     string      `yaml:"dsn"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ThrottleConfig limits decodes per identity.
type ThrottleConfig struct {
	Enabled       bool    `yaml:"enabled"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
	MaxKeys       int     `yaml:"maxKeys"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Token: TokenConfig{
			TTL:           900,
			UserClaim:     "user",
			IdentityField: "username",
		},
		Encoder: EncoderConfig{
			Type:      "jwt",
			Algorithm: "HS256",
		},
		Claims: ClaimsConfig{
			RequireTokenID: true,
		},
		Revocation: RevocationConfig{
			Backend: BackendSQLite,
			DSN:     "jwtlifecycle.db",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Throttle: ThrottleConfig{
			RatePerSecond: 10,
			Burst:         20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "jwtlifecycle",
			Endpoint:    "otel-collector:4317",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if secret := os.Getenv("TOKEN_SECRET_KEY"); secret != "" {
		cfg.Encoder.SecretKey = secret
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		n, err := strconv.Atoi(ttl)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
		}
		cfg.Token.TTL = n
	}
	if dsn := os.Getenv("REVOCATION_DSN"); dsn != "" {
		cfg.Revocation.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Revocation.Redis.Addr = addr
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.Endpoint = endpoint
	}
	if serviceName := os.Getenv("OTEL_SERVICE_NAME"); serviceName != "" {
		cfg.Telemetry.ServiceName = serviceName
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	return nil
}

// Validate checks settings that do not depend on key material.
func (c *Config) Validate() error {
	if c.Token.TTL < 1 {
		return fmt.Errorf("token.ttl must be at least 1 second, got %d", c.Token.TTL)
	}
	if c.Encoder.Leeway < 0 {
		return fmt.Errorf("encoder.leeway must not be negative")
	}
	// An empty type selects jwt, as it does for the encoder factory.
	switch c.Encoder.Type {
	case "", "jwt", "jwe":
	default:
		return fmt.Errorf("unknown encoder.type %q", c.Encoder.Type)
	}
	switch c.Revocation.Backend {
	case "", BackendNone:
	case BackendSQLite:
		if c.Revocation.DSN == "" {
			return fmt.Errorf("revocation.dsn is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Revocation.Redis.Addr == "" {
			return fmt.Errorf("revocation.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown revocation.backend %q", c.Revocation.Backend)
	}
	if c.Throttle.Enabled && (c.Throttle.RatePerSecond <= 0 || c.Throttle.Burst < 1) {
		return fmt.Errorf("throttle requires a positive ratePerSecond and burst")
	}
	if c.Throttle.MaxKeys < 0 {
		return fmt.Errorf("throttle.maxKeys must not be negative")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}

// TTLDuration returns Token.TTL as a duration.
func (c *Config) TTLDuration() time.Duration {
	return time.Duration(c.Token.TTL) * time.Second
}

// LeewayDuration returns Encoder.Leeway as a duration.
func (c *Config) LeewayDuration() time.Duration {
	return time.Duration(c.Encoder.Leeway) * time.Second
}
