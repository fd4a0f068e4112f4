package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSQLiteDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("BOOKING_MAX_ATTEMPTS", "")
	t.Setenv("BCRYPT_COST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.DB.Driver)
	}
	if cfg.DB.Path != "data/turf.db" {
		t.Errorf("path = %q, want data/turf.db", cfg.DB.Path)
	}
	if cfg.BookingMaxAttempts != 3 {
		t.Errorf("BookingMaxAttempts = %d, want 3", cfg.BookingMaxAttempts)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %s, want 10s", cfg.RequestTimeout)
	}
}

func TestLoadReportsEveryMissingVariable(t *testing.T) {
	for _, k := range []string{"JWT_SECRET", "DB_DSN", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_DRIVER", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without required variables")
	}
	for _, k := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q does not mention %s", err, k)
		}
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted an unsupported driver")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TURF_TEST_A=from-file\nTURF_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TURF_TEST_A", "from-env")
	t.Setenv("TURF_TEST_B", "")
	os.Unsetenv("TURF_TEST_B")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TURF_TEST_A"); got != "from-env" {
		t.Errorf("TURF_TEST_A = %q, want from-env", got)
	}
	if got := os.Getenv("TURF_TEST_B"); got != "from-file" {
		t.Errorf("TURF_TEST_B = %q, want from-file", got)
	}
	os.Unsetenv("TURF_TEST_B")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("RATE_LIMIT_PER", "-1s")
	t.Setenv("RATE_LIMIT_KEY_BY", "user")
	cfg := LoadRateLimitConfig()
	if cfg.Burst != 1 || cfg.Per != time.Second || cfg.KeyBy != "ip_route" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.IdleTTL() != 2*time.Second {
		t.Errorf("IdleTTL = %s, want 2s", cfg.IdleTTL())
	}
}

func TestLoadCacheConfigDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "0s")
	t.Setenv("CACHE_PREFIX", "")
	cfg := LoadCacheConfig()
	if cfg.TTL != 30*time.Second || cfg.Prefix != "turf:reports" {
		t.Errorf("cfg = %+v", cfg)
	}
}
