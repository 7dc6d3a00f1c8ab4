package environment

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sqliteConfig(name string) Config {
	return Config{Name: name, Driver: "sqlite", ConnectionString: ":memory:"}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", sqliteConfig("prod"), false},
		{"missing name", Config{Driver: "sqlite", ConnectionString: ":memory:"}, true},
		{"name with slash", Config{Name: "pr/od", Driver: "sqlite", ConnectionString: ":memory:"}, true},
		{"name with space", Config{Name: "pr od", Driver: "sqlite", ConnectionString: ":memory:"}, true},
		{"unknown driver", Config{Name: "prod", Driver: "oracle", ConnectionString: "x"}, true},
		{"missing connection string", Config{Name: "prod", Driver: "sqlite"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.MaxOpenConns != DefaultMaxOpenConns {
		t.Errorf("MaxOpenConns = %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != DefaultMaxIdleConns {
		t.Errorf("MaxIdleConns = %d", cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != DefaultConnMaxLifetime {
		t.Errorf("ConnMaxLifetime = %v", cfg.ConnMaxLifetime)
	}
	if cfg.AcquireTimeout != DefaultAcquireTimeout {
		t.Errorf("AcquireTimeout = %v", cfg.AcquireTimeout)
	}

	clamped := Config{MaxOpenConns: 3, MaxIdleConns: 10}
	clamped.ApplyDefaults()
	if clamped.MaxIdleConns != 3 {
		t.Errorf("MaxIdleConns = %d, expected clamp to MaxOpenConns", clamped.MaxIdleConns)
	}

	kept := Config{MaxOpenConns: 50, MaxIdleConns: 10, ConnMaxLifetime: time.Hour}
	kept.ApplyDefaults()
	if kept.MaxOpenConns != 50 || kept.MaxIdleConns != 10 || kept.ConnMaxLifetime != time.Hour {
		t.Errorf("explicit values changed: %+v", kept)
	}
}

func TestNormalizeDriver(t *testing.T) {
	tests := []struct {
		raw  string
		want Driver
	}{
		{"sqlserver", DriverSQLServer},
		{"mssql", DriverSQLServer},
		{"MSSQL", DriverSQLServer},
		{"postgres", DriverPostgres},
		{"postgresql", DriverPostgres},
		{"pgx", DriverPostgres},
		{"sqlite", DriverSQLite},
		{"sqlite3", DriverSQLite},
		{" sqlite ", DriverSQLite},
	}
	for _, tt := range tests {
		got, err := normalizeDriver(tt.raw)
		if err != nil {
			t.Errorf("normalizeDriver(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeDriver(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	if _, err := normalizeDriver("oracle"); err == nil {
		t.Error("normalizeDriver(oracle) must fail")
	}
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry([]Config{sqliteConfig("prod"), sqliteConfig("dev")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	if !reg.IsAllowed("prod") || !reg.IsAllowed("PROD") {
		t.Error("prod must be allowed case-insensitively")
	}
	if reg.IsAllowed("staging") {
		t.Error("staging is not configured")
	}

	h, err := reg.Resolve("Dev")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h.Name() != "dev" {
		t.Errorf("Name = %q", h.Name())
	}
	if h.Driver() != DriverSQLite {
		t.Errorf("Driver = %q", h.Driver())
	}
	if h.Dialect() == nil {
		t.Error("Dialect must be set")
	}

	if _, err := reg.Resolve("staging"); !errors.Is(err, ErrUnknownEnvironment) {
		t.Errorf("Resolve(staging) error = %v, want ErrUnknownEnvironment", err)
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "prod" || names[1] != "dev" {
		t.Errorf("Names = %v, expected configuration order", names)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Config{sqliteConfig("prod"), sqliteConfig("PROD")})
	if err == nil {
		t.Fatal("duplicate names must be rejected")
	}
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	_, err := NewRegistry([]Config{{Name: "prod", Driver: "oracle", ConnectionString: "x"}})
	if err == nil {
		t.Fatal("invalid driver must be rejected")
	}
}

func TestHandlePoolLifecycle(t *testing.T) {
	reg, err := NewRegistry([]Config{sqliteConfig("prod")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	h, err := reg.Resolve("prod")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	db, err := h.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	again, err := h.DB()
	if err != nil || again != db {
		t.Fatalf("DB must return the same pool, err %v", err)
	}

	ctx := context.Background()
	if err := h.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	conn, err := h.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	var one int
	if err := conn.QueryRowxContext(ctx, "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("query: %v", err)
	}
	if one != 1 {
		t.Errorf("SELECT 1 = %d", one)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("return connection: %v", err)
	}
}

func TestCloseBeforeOpenIsSafe(t *testing.T) {
	reg, err := NewRegistry([]Config{sqliteConfig("prod")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close on unopened pools: %v", err)
	}
}
