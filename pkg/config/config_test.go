package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if got := cfg.Catalog.TTL; got != 5*time.Minute {
		t.Fatalf("expected catalog ttl 5m, got %v", got)
	}
	if got := cfg.Commerce.MaxAttempts; got != 2 {
		t.Fatalf("expected two attempts (retry once) by default, got %d", got)
	}
	if got := cfg.Commerce.RequestTimeout; got != 12*time.Second {
		t.Fatalf("expected 12s request timeout, got %v", got)
	}
	if cfg.Session.UsesDB() {
		t.Fatalf("redis should be the default session backend")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsUnknownSessionBackend(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSessionBackend, "localstorage")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown session backend to be rejected")
	}
}

func TestLoad_DBBackendBuildsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSessionBackend, SessionBackendDB)
	t.Setenv(EnvDBHost, "db.internal")
	t.Setenv(EnvDBUser, "courtside")
	t.Setenv(EnvDBName, "carts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := "postgres://courtside@db.internal:5432/carts?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
}

func TestLoad_DBBackendSQLiteRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSessionBackend, SessionBackendDB)
	t.Setenv(EnvDBDriver, DBDriverSQLite)

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite without dsn to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvCommerceDomain, "courtside-padel.myshopify.com")
	t.Setenv(EnvCommerceToken, "storefront-token")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestCommerceEndpoint(t *testing.T) {
	cfg := CommerceConfig{StoreDomain: "courtside-padel.myshopify.com/", APIVersion: "2024-10"}
	if got := cfg.Endpoint(); got != "https://courtside-padel.myshopify.com/api/2024-10/graphql.json" {
		t.Fatalf("unexpected endpoint %s", got)
	}
	local := CommerceConfig{StoreDomain: "http://127.0.0.1:9000", APIVersion: "unstable"}
	if got := local.Endpoint(); got != "http://127.0.0.1:9000/api/unstable/graphql.json" {
		t.Fatalf("unexpected endpoint %s", got)
	}
}
