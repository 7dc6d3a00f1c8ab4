package environment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/odata"

	// Register the database/sql drivers for the supported backends.
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

func init() {
	// glebarez registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Handle is the runtime face of one configured environment. The underlying
// pool is opened on first use; requests check connections out through
// Acquire so pool pressure surfaces as ErrPoolExhausted instead of an
// unbounded wait.
type Handle struct {
	cfg     Config
	driver  Driver
	dialect odata.Dialect

	once    sync.Once
	db      *sqlx.DB
	openErr error
}

func newHandle(cfg Config) (*Handle, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dialect, err := odata.DialectFor(string(driver))
	if err != nil {
		return nil, err
	}

	return &Handle{cfg: cfg, driver: driver, dialect: dialect}, nil
}

// NewHandleFromDB wraps an already-open database handle. The dialect still
// derives from cfg.Driver; pool sizing and lifetime stay with the caller.
func NewHandleFromDB(cfg Config, db *sql.DB) (*Handle, error) {
	cfg.ApplyDefaults()

	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dialect, err := odata.DialectFor(string(driver))
	if err != nil {
		return nil, err
	}

	h := &Handle{cfg: cfg, driver: driver, dialect: dialect}
	h.once.Do(func() {
		h.db = sqlx.NewDb(db, driver.sqlDriverName())
	})
	return h, nil
}

// Name returns the environment key.
func (h *Handle) Name() string { return h.cfg.Name }

// Driver returns the canonical driver.
func (h *Handle) Driver() Driver { return h.driver }

// Dialect returns the SQL dialect used to compile statements for this
// environment.
func (h *Handle) Dialect() odata.Dialect { return h.dialect }

// StorageRoot returns the file storage base directory, which may be empty.
func (h *Handle) StorageRoot() string { return h.cfg.StorageRoot }

// DB returns the environment's pool, opening it on first call. Opening
// does not dial; connections are established on checkout.
func (h *Handle) DB() (*sqlx.DB, error) {
	h.once.Do(func() {
		db, err := sqlx.Open(h.driver.sqlDriverName(), h.cfg.ConnectionString)
		if err != nil {
			h.openErr = fmt.Errorf("open pool for environment %q: %w", h.cfg.Name, err)
			return
		}
		db.SetMaxOpenConns(h.cfg.MaxOpenConns)
		db.SetMaxIdleConns(h.cfg.MaxIdleConns)
		db.SetConnMaxLifetime(h.cfg.ConnMaxLifetime)
		h.db = db

		logger.Debug("environment pool opened",
			logger.Env(h.cfg.Name),
			logger.Driver(string(h.driver)),
			"max_open_conns", h.cfg.MaxOpenConns,
		)
	})
	return h.db, h.openErr
}

// Acquire checks a connection out of the pool, waiting at most
// AcquireTimeout. The caller must Close the connection to return it.
func (h *Handle) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	db, err := h.DB()
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, h.cfg.AcquireTimeout)
	defer cancel()

	conn, err := db.Connx(acquireCtx)
	if err != nil {
		// The acquire deadline fired while the caller's context was
		// still live: the pool (or the database) did not yield a
		// connection in time.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("environment %q: %w", h.cfg.Name, ErrPoolExhausted)
		}
		return nil, fmt.Errorf("acquire connection for environment %q: %w", h.cfg.Name, err)
	}
	return conn, nil
}

// Ping verifies the environment's database is reachable, bounded by
// AcquireTimeout.
func (h *Handle) Ping(ctx context.Context) error {
	db, err := h.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.cfg.AcquireTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}

// Close releases the pool if it was opened.
func (h *Handle) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}
