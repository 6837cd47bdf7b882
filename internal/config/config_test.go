package config

import (
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	for _, key := range []string{"REQUEST_TIMEOUT", "RECURRING_JITTER_MIN", "RECURRING_JITTER_MAX",
		"RECURRING_SWEEP_INTERVAL", "RECURRING_SWEEP_CONCURRENCY", "DB_DRIVER", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RecurringJitterMin != 2*time.Second || cfg.RecurringJitterMax != 5*time.Second {
		t.Errorf("unexpected jitter window [%v, %v]", cfg.RecurringJitterMin, cfg.RecurringJitterMax)
	}
	if cfg.RecurringSweepInterval != 6*time.Hour {
		t.Errorf("expected 6h sweep interval, got %v", cfg.RecurringSweepInterval)
	}
	if cfg.RecurringSweepConcurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.RecurringSweepConcurrency)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.DBDriver)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_invalid_values(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"REQUEST_TIMEOUT": "soon"}},
		{"negative interval", map[string]string{"RECURRING_SWEEP_INTERVAL": "-1h"}},
		{"inverted jitter", map[string]string{"RECURRING_JITTER_MIN": "10s", "RECURRING_JITTER_MAX": "1s"}},
		{"zero concurrency", map[string]string{"RECURRING_SWEEP_CONCURRENCY": "0"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("unexpected list %v", got)
	}
}
