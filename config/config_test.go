package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL_SECONDS", "")
	t.Setenv("SEED_USERS", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "3001" {
		t.Fatalf("default port = %q", cfg.Server.Port)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("default session ttl = %v", cfg.Session.TTL)
	}
	if cfg.Updates.Current != Version {
		t.Fatalf("current version = %q", cfg.Updates.Current)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	for _, k := range []string{"PORT", "ADMIN_IDS", "SEED_USERS", "CART_TTL_SECONDS", "DB_EMBEDDED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	file := filepath.Join(t.TempDir(), ".env")
	body := "PORT=8088\nADMIN_IDS=1001, 1002\nSEED_USERS=1001:Anna,2002:Ben\nCART_TTL_SECONDS=60\nDB_EMBEDDED=true\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8088" || cfg.Session.CartTTL != time.Minute || !cfg.Database.Embedded {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.IsAdminID("1002") || cfg.IsAdminID("2002") {
		t.Fatalf("admin ids = %v", cfg.Session.AdminIDs)
	}
	if cfg.Session.SeedUsers["2002"] != "Ben" || len(cfg.Session.SeedUsers) != 2 {
		t.Fatalf("seed users = %v", cfg.Session.SeedUsers)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                "http",
		"SESSION_TTL_SECONDS": "-5",
		"SEED_USERS":          "nobody",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
				t.Fatalf("expected error for %s=%q", key, val)
			}
		})
	}
}
