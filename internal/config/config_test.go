package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort != ":8080" {
		t.Fatalf("unexpected server port %q", cfg.ServerPort)
	}
	if cfg.PostgresURL == "" || cfg.RedisAddr == "" || cfg.JWTSecret == "" {
		t.Fatalf("expected defaults to be populated")
	}
	if cfg.TaxaBaseURL == "" || cfg.TaxaCacheTTL <= 0 {
		t.Fatalf("expected taxa defaults to be populated")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("TAXA_BASE_URL", "http://taxa.local")

	cfg := Load()
	if cfg.ServerPort != ":9999" {
		t.Fatalf("expected env override, got %q", cfg.ServerPort)
	}
	if cfg.TaxaBaseURL != "http://taxa.local" {
		t.Fatalf("expected taxa base url override, got %q", cfg.TaxaBaseURL)
	}
}
