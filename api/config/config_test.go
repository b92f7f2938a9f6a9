package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8900" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Namespace != "default" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.RolloutTimeout != 5*time.Minute {
		t.Errorf("RolloutTimeout = %v", cfg.RolloutTimeout)
	}
	if cfg.RolloutInterval != 2*time.Second {
		t.Errorf("RolloutInterval = %v", cfg.RolloutInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JANUS_PORT", "9000")
	t.Setenv("JANUS_ROLLOUT_TIMEOUT", "90s")
	t.Setenv("JANUS_S3_USE_SSL", "true")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.RolloutTimeout != 90*time.Second {
		t.Errorf("RolloutTimeout = %v", cfg.RolloutTimeout)
	}
	if !cfg.S3UseSSL {
		t.Error("S3UseSSL should be true")
	}
}

func TestDurationOr_Invalid(t *testing.T) {
	t.Setenv("JANUS_ROLLOUT_TIMEOUT", "not-a-duration")
	cfg := Load()
	if cfg.RolloutTimeout != 5*time.Minute {
		t.Errorf("RolloutTimeout = %v, want fallback 5m", cfg.RolloutTimeout)
	}
}
