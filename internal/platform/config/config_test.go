package config

import (
	"os"
	"testing"
	"time"
)

// Test environment variable keys.
const (
	testEnvPostgresDSN = "POSTGRES_DSN"
	testEnvAdminIDs    = "ADMIN_IDS"
	testEnvDedupWindow = "DEDUP_WINDOW"
)

// Test values.
const (
	testPostgresDSN  = "postgres://localhost/test"
	testErrLoad      = "Load() error = %v"
	testDefaultEnv   = "local"
	testDefaultModel = "gpt-4o-mini"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv(testEnvPostgresDSN, "")
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	// Explicitly unset variables that might be in .env to test actual defaults
	for _, key := range []string{"APP_ENV", "LLM_MODEL", "HEALTH_PORT", testEnvDedupWindow, "DEDUP_WINDOW_DAYS", "SOLR_COLLECTION", "WORKER_POLL_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.PostgresDSN != testPostgresDSN {
		t.Errorf("PostgresDSN = %q, want %q", cfg.PostgresDSN, testPostgresDSN)
	}

	if cfg.AppEnv != testDefaultEnv || !cfg.IsLocal() {
		t.Errorf("AppEnv default = %q, want %q", cfg.AppEnv, testDefaultEnv)
	}

	if cfg.LLMModel != testDefaultModel {
		t.Errorf("LLMModel default = %q, want %q", cfg.LLMModel, testDefaultModel)
	}

	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort default = %d, want %d", cfg.HealthPort, 8080)
	}

	if cfg.DedupWindow != 7*24*time.Hour {
		t.Errorf("DedupWindow default = %v, want %v", cfg.DedupWindow, 7*24*time.Hour)
	}

	if cfg.SolrCollection != "news" {
		t.Errorf("SolrCollection default = %q, want %q", cfg.SolrCollection, "news")
	}

	if cfg.WorkerPollInterval != 10*time.Second {
		t.Errorf("WorkerPollInterval default = %v, want %v", cfg.WorkerPollInterval, 10*time.Second)
	}
}

func TestLoad_AdminIDs(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvAdminIDs, "111,222,333")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if len(cfg.AdminIDs) != 3 {
		t.Fatalf("AdminIDs length = %d, want %d", len(cfg.AdminIDs), 3)
	}

	expected := []int64{111, 222, 333}
	for i, want := range expected {
		if cfg.AdminIDs[i] != want {
			t.Errorf("AdminIDs[%d] = %d, want %d", i, cfg.AdminIDs[i], want)
		}
	}

	if !cfg.IsAdmin(222) {
		t.Error("IsAdmin(222) = false, want true")
	}

	if cfg.IsAdmin(444) {
		t.Error("IsAdmin(444) = true, want false")
	}
}

func TestLoad_DedupWindowDaysAlias(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvDedupWindow, "")
	os.Unsetenv(testEnvDedupWindow)
	t.Setenv("DEDUP_WINDOW_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.DedupWindow != 72*time.Hour {
		t.Errorf("DedupWindow = %v, want %v", cfg.DedupWindow, 72*time.Hour)
	}
}

func TestLoad_DedupWindowWinsOverAlias(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvDedupWindow, "48h")
	t.Setenv("DEDUP_WINDOW_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.DedupWindow != 48*time.Hour {
		t.Errorf("DedupWindow = %v, want %v", cfg.DedupWindow, 48*time.Hour)
	}
}

func TestLoad_InvalidNumeric(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("HEALTH_PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("expected error for invalid HEALTH_PORT")
	}
}
