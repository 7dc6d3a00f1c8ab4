package token

import (
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	t.Run("DefaultsToSQLite", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()

		if cfg.Type != DatabaseTypeSQLite {
			t.Errorf("Type = %q, expected %q", cfg.Type, DatabaseTypeSQLite)
		}
	})

	t.Run("UsesXDGConfigHome", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmpDir)

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		expected := filepath.Join(tmpDir, "portway", "tokens.db")
		if cfg.SQLite.Path != expected {
			t.Errorf("SQLite.Path = %q, expected %q", cfg.SQLite.Path, expected)
		}
	})

	t.Run("KeepsExplicitPath", func(t *testing.T) {
		cfg := &Config{
			Type:   DatabaseTypeSQLite,
			SQLite: SQLiteConfig{Path: "/tmp/custom.db"},
		}
		cfg.ApplyDefaults()

		if cfg.SQLite.Path != "/tmp/custom.db" {
			t.Errorf("SQLite.Path = %q, expected explicit path preserved", cfg.SQLite.Path)
		}
	})

	t.Run("PostgresDefaults", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypePostgres}
		cfg.ApplyDefaults()

		if cfg.Postgres.Port != 5432 {
			t.Errorf("Port = %d, expected 5432", cfg.Postgres.Port)
		}
		if cfg.Postgres.SSLMode != "disable" {
			t.Errorf("SSLMode = %q, expected disable", cfg.Postgres.SSLMode)
		}
		if cfg.Postgres.MaxOpenConns != 25 {
			t.Errorf("MaxOpenConns = %d, expected 25", cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns != 5 {
			t.Errorf("MaxIdleConns = %d, expected 5", cfg.Postgres.MaxIdleConns)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("MissingSQLitePath", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypeSQLite}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing sqlite path")
		}
	})

	t.Run("MissingPostgresFields", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypePostgres}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres host")
		}

		cfg.Postgres.Host = "localhost"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres database")
		}

		cfg.Postgres.Database = "portway"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres user")
		}

		cfg.Postgres.User = "portway"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := &Config{Type: "oracle"}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "gateway",
		Password: "secret",
		Database: "tokens",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	expected := "host=db.internal port=5433 user=gateway password=secret dbname=tokens sslmode=require"
	if dsn != expected {
		t.Errorf("DSN = %q, expected %q", dsn, expected)
	}
}
