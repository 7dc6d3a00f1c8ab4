package environment

import (
	"fmt"
	"strings"
	"time"
)

// Driver identifies the SQL backend of an environment.
type Driver string

const (
	DriverSQLServer Driver = "sqlserver"
	DriverPostgres  Driver = "postgres"
	DriverSQLite    Driver = "sqlite"
)

const (
	// DefaultMaxOpenConns limits each environment's pool.
	DefaultMaxOpenConns = 25

	// DefaultMaxIdleConns keeps a few connections warm.
	DefaultMaxIdleConns = 5

	// DefaultAcquireTimeout bounds how long a request waits for a
	// connection before the pool is reported exhausted.
	DefaultAcquireTimeout = 5 * time.Second

	// DefaultConnMaxLifetime recycles connections so load balancer and
	// failover changes are picked up.
	DefaultConnMaxLifetime = 30 * time.Minute
)

// Config describes one gateway environment: a named backend with its own
// connection string, pool limits, and file storage root.
type Config struct {
	// Name is the environment key used in request paths (/api/{env}/...).
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Driver selects the SQL dialect and database/sql driver.
	Driver string `mapstructure:"driver" validate:"required" yaml:"driver"`

	// ConnectionString is passed verbatim to the driver.
	ConnectionString string `mapstructure:"connection_string" validate:"required" yaml:"connection_string"`

	// StorageRoot is the base directory for file endpoints in this
	// environment. Optional; file endpoints may carry their own root.
	StorageRoot string `mapstructure:"storage_root" yaml:"storage_root"`

	// MaxOpenConns caps the pool size (0 = default).
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections kept in the pool (0 = default).
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`

	// ConnMaxLifetime recycles connections older than this (0 = default).
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`

	// AcquireTimeout bounds pool checkout; on expiry the request fails
	// with ErrPoolExhausted (0 = default).
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("environment name is required")
	}
	if strings.ContainsAny(c.Name, "/ ") {
		return fmt.Errorf("environment name %q must not contain slashes or spaces", c.Name)
	}
	if _, err := normalizeDriver(c.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.ConnectionString) == "" {
		return fmt.Errorf("environment %q has no connection string", c.Name)
	}
	return nil
}

// normalizeDriver folds the configured driver name onto a canonical Driver.
func normalizeDriver(raw string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqlserver", "mssql":
		return DriverSQLServer, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver %q (want sqlserver, postgres, or sqlite)", raw)
	}
}

// sqlDriverName maps the canonical driver onto the name registered with
// database/sql by the imported driver packages.
func (d Driver) sqlDriverName() string {
	switch d {
	case DriverPostgres:
		return "pgx"
	default:
		return string(d)
	}
}
