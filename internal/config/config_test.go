package config

import (
	"testing"
	"time"
)

func TestLoadPolicyDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Policy.Recognition.Tolerance != 0.5 {
		t.Errorf("tolerance = %f; want 0.5", cfg.Policy.Recognition.Tolerance)
	}
	if got := cfg.Policy.Session.DefaultDuration(); got != 45*time.Minute {
		t.Errorf("default duration = %v; want 45m", got)
	}
	if got := cfg.Policy.Session.LateGrace(); got != 0 {
		t.Errorf("late grace = %v; want 0 (disabled)", got)
	}
	if got := cfg.Policy.Auth.TokenTTL(); got != 30*time.Minute {
		t.Errorf("token TTL = %v; want 30m", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATCH_TOLERANCE", "0.42")
	t.Setenv("SESSION_DEFAULT_DURATION_MINUTES", "90")
	t.Setenv("SESSION_LATE_GRACE_MINUTES", "10")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")

	cfg := Load()

	if cfg.Policy.Recognition.Tolerance != 0.42 {
		t.Errorf("tolerance = %f; want 0.42", cfg.Policy.Recognition.Tolerance)
	}
	if cfg.Policy.Session.DefaultDurationMinutes != 90 {
		t.Errorf("duration minutes = %d; want 90", cfg.Policy.Session.DefaultDurationMinutes)
	}
	if cfg.Policy.Session.LateGraceMinutes != 10 {
		t.Errorf("grace minutes = %d; want 10", cfg.Policy.Session.LateGraceMinutes)
	}
	if cfg.Database.MaxOpenConns != 7 {
		t.Errorf("max open conns = %d; want 7", cfg.Database.MaxOpenConns)
	}
}

func TestEnvOverrideInvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("MATCH_TOLERANCE", "not-a-number")
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "-3")

	cfg := Load()

	if cfg.Policy.Recognition.Tolerance != 0.5 {
		t.Errorf("tolerance = %f; want default 0.5", cfg.Policy.Recognition.Tolerance)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("max idle conns = %d; want default 5", cfg.Database.MaxIdleConns)
	}
}

func TestValidateForServe(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForServe(); err == nil {
		t.Error("expected error for missing DATABASE_URL")
	}

	cfg.Database.URL = "postgres://localhost/rollcall"
	if err := cfg.ValidateForServe(); err == nil {
		t.Error("expected error for missing ROLLCALL_JWT_SECRET")
	}

	cfg.Auth.JWTSecret = "test-secret"
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
