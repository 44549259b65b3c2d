package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Task.Expiry != 30*time.Second {
		t.Fatalf("task.expiry = %v, want 30s", cfg.Task.Expiry)
	}
	if cfg.Task.Reconcile != 10*time.Minute {
		t.Fatalf("task.reconcile = %v, want 10m", cfg.Task.Reconcile)
	}
	if cfg.Ledger.DefaultCurrency != "CNY" || cfg.Ledger.ConflictRetries != 5 {
		t.Fatalf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Kafka.EventsTopic != "ideahub.crowdfunding.events" {
		t.Fatalf("kafka.events_topic = %q", cfg.Kafka.EventsTopic)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("IDEAHUB_REFUND_STUCK_AFTER", "2h")
	t.Setenv("IDEAHUB_LEDGER_AUTO_CORRECT_DRIFT", "true")
	cfg, err := Load(writeConfig(t, "database:\n  driver: memory\nrefund:\n  stuck_after: 48h\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Refund.StuckAfter != 2*time.Hour {
		t.Fatalf("refund.stuck_after = %v, want 2h", cfg.Refund.StuckAfter)
	}
	if !cfg.Ledger.AutoCorrectDrift {
		t.Fatal("expected auto_correct_drift from env")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	if _, err := Load(writeConfig(t, "database:\n  driver: mysql\n")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadDirectoryProjects(t *testing.T) {
	body := `
database:
  driver: memory
directory:
  projects:
    - id: 7b0d3c1e-5a7e-4d55-9d7a-1f6b2a4c8e01
      owner_id: 0f6f1c2a-3b4d-4e5f-8a9b-0c1d2e3f4a5b
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Directory.Projects) != 1 || cfg.Directory.Projects[0].OwnerID != "0f6f1c2a-3b4d-4e5f-8a9b-0c1d2e3f4a5b" {
		t.Fatalf("directory = %+v", cfg.Directory)
	}
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", DBName: "ideahub", SSLMode: "disable"}
	want := "postgres://app:p%40ss@db:5432/ideahub?sslmode=disable"
	if got := d.URL(); got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
}

func TestLoadRateLimit(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rl := cfg.RateLimit
	if !rl.Enabled || rl.Window != time.Minute || rl.Default != 200 {
		t.Fatalf("rate_limit = %+v", rl)
	}
	if len(rl.Rules) != 1 || rl.Rules[0].Prefix != "/api/v1/investments" || rl.Rules[0].Limit != 10 {
		t.Fatalf("rate_limit.rules = %+v", rl.Rules)
	}

	body := "database:\n  driver: memory\nrate_limit:\n  rules:\n    - prefix: /api/v1/campaigns\n      limit: 0\n"
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for rule without a positive limit")
	}
}

func TestSampleConfigDefaultsToPostgres(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("load sample config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("sample database.driver = %q, want postgres", cfg.Database.Driver)
	}
}
