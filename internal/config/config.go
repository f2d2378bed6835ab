// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/ggoodman/mcp-gate/auth"
	"github.com/ggoodman/mcp-gate/internal/telemetry"
)

// Config is read once at startup.
type Config struct {
	// PublicKey is PEM text. Literal "\n" sequences are accepted in place of
	// newlines so the key fits in a single-line variable.
	PublicKey string `env:"PUBLIC_KEY"`
	// PublicKeyFile is a path to a PEM file.
	PublicKeyFile string `env:"PUBLIC_KEY_FILE"`
	// PublicJWKS is a JWKS JSON document.
	PublicJWKS string `env:"PUBLIC_JWKS"`

	Algorithm string `env:"ALGORITHM,default=RS256"`
	// ClientIDs is a comma-separated list of integers. Empty allows any client.
	ClientIDs     string        `env:"CLIENT_IDS"`
	RequiredScope string        `env:"REQUIRED_SCOPE,default=client_super"`
	Leeway        time.Duration `env:"TOKEN_LEEWAY,default=0s"`

	ListenAddr      string        `env:"LISTEN_ADDR,default=127.0.0.1:8080"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// MetricsExporter is one of none, stdout or otlp.
	MetricsExporter string `env:"METRICS_EXPORTER,default=none"`

	// RedisAddr enables the audit trail when set.
	RedisAddr   string `env:"REDIS_ADDR"`
	AuditStream string `env:"AUDIT_STREAM,default=mcp-gate:audit"`
}

// Load decodes the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that exactly one key source is configured and that the
// remaining values parse.
func (c *Config) Validate() error {
	var errs []error

	sources := 0
	for _, s := range []string{c.PublicKey, c.PublicKeyFile, c.PublicJWKS} {
		if strings.TrimSpace(s) != "" {
			sources++
		}
	}
	switch sources {
	case 0:
		errs = append(errs, errors.New("one of PUBLIC_KEY, PUBLIC_KEY_FILE or PUBLIC_JWKS is required"))
	case 1:
	default:
		errs = append(errs, errors.New("PUBLIC_KEY, PUBLIC_KEY_FILE and PUBLIC_JWKS are mutually exclusive"))
	}

	if _, err := c.AllowedClientIDs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(telemetry.Exporters, c.MetricsExporter) && c.MetricsExporter != "" {
		errs = append(errs, fmt.Errorf("METRICS_EXPORTER must be one of %s", strings.Join(telemetry.Exporters, ", ")))
	}
	if c.Leeway < 0 {
		errs = append(errs, errors.New("TOKEN_LEEWAY must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// AllowedClientIDs parses CLIENT_IDS.
func (c *Config) AllowedClientIDs() ([]int64, error) {
	if strings.TrimSpace(c.ClientIDs) == "" {
		return nil, nil
	}
	parts := strings.Split(c.ClientIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CLIENT_IDS: %q is not an integer", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// KeyMaterial returns the PEM bytes from PUBLIC_KEY or PUBLIC_KEY_FILE. It
// returns nil when a JWKS document is configured instead.
func (c *Config) KeyMaterial() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.PublicKey) != "":
		return []byte(strings.ReplaceAll(c.PublicKey, `\n`, "\n")), nil
	case c.PublicKeyFile != "":
		b, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read PUBLIC_KEY_FILE: %w", err)
		}
		return b, nil
	default:
		return nil, nil
	}
}

// VerifierConfig builds the verifier configuration and options described by c.
func (c *Config) VerifierConfig() (auth.Config, []auth.Option, error) {
	ac := auth.Config{Algorithm: c.Algorithm}

	if strings.TrimSpace(c.PublicJWKS) != "" {
		ks, err := auth.NewJWKSKeySet([]byte(c.PublicJWKS))
		if err != nil {
			return auth.Config{}, nil, fmt.Errorf("PUBLIC_JWKS: %w", err)
		}
		ac.KeySet = ks
	} else {
		pem, err := c.KeyMaterial()
		if err != nil {
			return auth.Config{}, nil, err
		}
		alg := c.Algorithm
		if alg == "" {
			alg = auth.DefaultAlgorithm
		}
		key, err := auth.ParsePublicKeyPEM(pem, alg)
		if err != nil {
			return auth.Config{}, nil, err
		}
		ac.PublicKey = key
	}

	ids, err := c.AllowedClientIDs()
	if err != nil {
		return auth.Config{}, nil, err
	}
	opts := []auth.Option{
		auth.WithAllowedClientIDs(ids...),
		auth.WithRequiredScope(c.RequiredScope),
		auth.WithLeeway(c.Leeway),
	}
	return ac, opts, nil
}
