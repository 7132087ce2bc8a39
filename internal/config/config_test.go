package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Unsetenv("STORE_BACKEND")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.Handshake.ReplayMaxAgeSec != 300 {
		t.Errorf("Expected replay max age 300, got %d", cfg.Handshake.ReplayMaxAgeSec)
	}
	if cfg.Handshake.SessionTTLSec != 3600 {
		t.Errorf("Expected session TTL 3600, got %d", cfg.Handshake.SessionTTLSec)
	}
}

func TestLoad_MissingMySQLDSN(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mysql")
	os.Unsetenv("MYSQL_DSN")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MYSQL_DSN is missing")
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_PASS", "secret")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HANDSHAKE_REQUIRE_ISSUED_CHALLENGE", "1")
	t.Setenv("HANDSHAKE_RATE_PER_SEC", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Store.Backend != BackendRedis {
		t.Errorf("Expected redis backend, got %s", cfg.Store.Backend)
	}
	if cfg.Redis.Addr != "redis.example.com:6379" {
		t.Errorf("Expected custom Redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "secret" {
		t.Errorf("Expected Redis password 'secret', got %s", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 5 {
		t.Errorf("Expected Redis DB 5, got %d", cfg.Redis.DB)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("Expected HTTPAddr :9090, got %s", cfg.HTTPAddr)
	}
	if !cfg.Handshake.RequireIssuedChallenge {
		t.Error("Expected RequireIssuedChallenge true")
	}
	if cfg.Handshake.RatePerSec != 2.5 {
		t.Errorf("Expected rate 2.5, got %v", cfg.Handshake.RatePerSec)
	}
}

func TestLoadFromINI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentmesh.ini")
	content := `
[http]
addr = :7070

[store]
backend = sqlite

[sqlite]
path = /tmp/mesh.db

[handshake]
session_ttl_sec = 600
require_issued_challenge = true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("STORE_BACKEND")
	os.Unsetenv("HTTP_ADDR")
	t.Setenv("HANDSHAKE_SESSION_TTL_SEC", "120")

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI failed: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("Expected :7070, got %s", cfg.HTTPAddr)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.SQLite.Path != "/tmp/mesh.db" {
		t.Errorf("unexpected store config %+v %+v", cfg.Store, cfg.SQLite)
	}
	// env wins over INI
	if cfg.Handshake.SessionTTLSec != 120 {
		t.Errorf("Expected env override 120, got %d", cfg.Handshake.SessionTTLSec)
	}
	if !cfg.Handshake.RequireIssuedChallenge {
		t.Error("Expected RequireIssuedChallenge from INI")
	}
}

func TestLoadFromINI_MissingFile(t *testing.T) {
	if _, err := LoadFromINI(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
		t.Error("Expected error for missing INI file")
	}
}
