package database

import (
	"strings"
	"testing"
)

func TestConfig_MigrateURL_escapes_credentials(t *testing.T) {
	cfg := &Config{User: "lana", Password: "p@ss/word", Host: "db", Port: "5432", DBName: "lana", SSLMode: "disable"}

	got := cfg.MigrateURL()
	if !strings.HasPrefix(got, "postgres://lana:p%40ss%2Fword@db:5432/lana") {
		t.Errorf("unexpected url %s", got)
	}
	if !strings.HasSuffix(got, "?sslmode=disable") {
		t.Errorf("expected sslmode query, got %s", got)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{User: "u", Password: "p", Host: "h", Port: "1", DBName: "d", SSLMode: "require"}
	want := "host=h port=1 user=u password=p dbname=d sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestNewManager_sqlite_migrates_models(t *testing.T) {
	m, err := NewManager(&Config{Driver: "sqlite", Path: "file:dbtest?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.RunMigrations(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, table := range []string{"users", "transactions", "recurring_rules", "invoices", "user_settings"} {
		if !m.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}
