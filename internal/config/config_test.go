package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestTaxRateParsing(t *testing.T) {
	cases := map[string]string{
		"":      "0.16",
		"0.08":  "0.08",
		"0":     "0",
		"-0.1":  "0.16",
		"1.5":   "0.16",
		"bogus": "0.16",
	}
	for raw, want := range cases {
		t.Setenv("TAX_RATE", raw)
		got := Load().TaxRate
		if got.String() != want {
			t.Fatalf("TAX_RATE=%q: got %s, want %s", raw, got, want)
		}
	}
}

func TestCatalogCacheTTLFallback(t *testing.T) {
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "-4")
	if ttl := Load().CatalogCacheTTL(); ttl != 30*time.Second {
		t.Fatalf("expected 30s fallback, got %s", ttl)
	}
}

func TestLoadClientTrimsURL(t *testing.T) {
	t.Setenv("POS_API_URL", "http://pos.local:9000/")
	t.Setenv("POS_API_TOKEN", " tok ")
	t.Setenv("POS_HTTP_TIMEOUT", "nope")

	cfg := LoadClient()
	if cfg.APIURL != "http://pos.local:9000" || cfg.Token != "tok" || cfg.Timeout != 10*time.Second {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORT=1234\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}

	cfg := Load()
	if cfg.Port != "9999" {
		t.Fatalf("expected existing PORT to win, got %s", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected LOG_LEVEL from file, got %s", cfg.LogLevel)
	}
}

func TestLoadDotEnvMissingFileIsIgnored(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}
