package config

import (
	_ "embed"
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Database DatabaseConfig
	Detector DetectorConfig
	Auth     AuthConfig
	Web      WebConfig
	Policy   PolicyConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type DetectorConfig struct {
	URL string // face detector sidecar, defaults to http://localhost:8000
}

type AuthConfig struct {
	JWTSecret string // signing secret, must come from the environment
}

type WebConfig struct {
	Host string
	Port int
}

// PolicyConfig carries recognition and session policy defaults, loaded
// from the embedded policy.yaml with per-value env overrides.
type PolicyConfig struct {
	Recognition RecognitionPolicy `yaml:"recognition"`
	Session     SessionPolicy     `yaml:"session"`
	Auth        AuthPolicy        `yaml:"auth"`
}

type RecognitionPolicy struct {
	Tolerance float64 `yaml:"tolerance"`
}

type SessionPolicy struct {
	DefaultDurationMinutes int `yaml:"default_duration_minutes"`
	LateGraceMinutes       int `yaml:"late_grace_minutes"`
}

type AuthPolicy struct {
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// DefaultDuration returns the session duration to use when the caller
// does not supply one.
func (p *SessionPolicy) DefaultDuration() time.Duration {
	return time.Duration(p.DefaultDurationMinutes) * time.Minute
}

// LateGrace returns the grace period before recognitions turn late.
// Zero disables late classification.
func (p *SessionPolicy) LateGrace() time.Duration {
	return time.Duration(p.LateGraceMinutes) * time.Minute
}

// TokenTTL returns the access token lifetime.
func (p *AuthPolicy) TokenTTL() time.Duration {
	return time.Duration(p.TokenTTLMinutes) * time.Minute
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float, falling
// back to the default on unset or invalid values.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// Embedded file, so this cannot happen with a valid build.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	policy.Recognition.Tolerance = envFloat("MATCH_TOLERANCE", policy.Recognition.Tolerance)
	policy.Session.DefaultDurationMinutes = envInt("SESSION_DEFAULT_DURATION_MINUTES", policy.Session.DefaultDurationMinutes)
	policy.Session.LateGraceMinutes = envInt("SESSION_LATE_GRACE_MINUTES", policy.Session.LateGraceMinutes)
	policy.Auth.TokenTTLMinutes = envInt("AUTH_TOKEN_TTL_MINUTES", policy.Auth.TokenTTLMinutes)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("ROLLCALL_JWT_SECRET"),
		},
		Web: WebConfig{
			Host: os.Getenv("WEB_HOST"),
			Port: envInt("WEB_PORT", 8080),
		},
		Policy: policy,
	}
}

// ValidateForServe checks the settings the server cannot run without.
func (c *Config) ValidateForServe() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("ROLLCALL_JWT_SECRET is required; refusing to fall back to a built-in secret")
	}
	return nil
}
