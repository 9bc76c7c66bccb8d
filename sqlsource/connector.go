// Package sqlsource runs the data setup scripts of a scenario against the
// application database and turns their results into dataset result sets.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"github.com/shibukawa/snape2e"
)

// PoolSettings defines database connection pool configuration
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolSettings suits one scenario worker
var DefaultPoolSettings = PoolSettings{
	MaxOpenConns:    4,
	MaxIdleConns:    4,
	ConnMaxLifetime: 5 * time.Minute,
}

// DriverName maps a configured driver to the registered database/sql driver
func DriverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: '%s'", snape2e.ErrUnsupportedDriver, driver)
	}
}

// Open opens and pings the database. The ping is bounded by db.Timeout seconds.
func Open(ctx context.Context, db snape2e.Database, pool PoolSettings) (*sql.DB, error) {
	driverName, err := DriverName(db.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, db.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", db.Driver, err)
	}

	conn.SetMaxOpenConns(pool.MaxOpenConns)
	conn.SetMaxIdleConns(pool.MaxIdleConns)
	conn.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if db.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(db.Timeout)*time.Second)
		defer cancel()
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", db.Driver, err)
	}

	return conn, nil
}
