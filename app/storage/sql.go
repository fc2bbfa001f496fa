package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
	"nuclight.org/thread-guard-bot/app/storage/migrations"
)

const (
	// DriverSQLite3 is the cgo sqlite driver
	DriverSQLite3 = "sqlite3"

	// DriverSQLite is the pure Go sqlite driver
	DriverSQLite = "sqlite"

	// DriverPostgres is the pgx postgres driver, dsn is a postgres url
	DriverPostgres = "pgx"
)

// SQL keeps warning timestamps in a single "warnings" table keyed by user id.
type SQL struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies pending migrations. For sqlite
// drivers dsn is a file path, the parent directory is created if missing.
func Open(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, dialect, err := Connect(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	err = migrations.Run(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating %s database: %w", driver, err)
	}

	return &SQL{
		db:     db,
		driver: driver,
	}, nil
}

// Connect opens and pings the database without touching its schema. It
// returns the goose dialect matching the driver.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, string, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, "", err
	}

	if isSQLite(driver) {
		if err := ensureDir(dsn); err != nil {
			return nil, "", err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s database: %w", driver, err)
	}

	err = prepare(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("initializing %s database: %w", driver, err)
	}

	return db, dialect, nil
}

func (c *SQL) Close() error {
	return c.db.Close()
}

func (c *SQL) GetWarning(ctx context.Context, userID int64) (int64, bool, error) {
	var ts int64
	err := c.db.QueryRowContext(
		ctx,
		c.rebind("SELECT last_warning_ts FROM warnings WHERE user_id = ?"),
		userID,
	).Scan(&ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("selecting warning: %w", err)
	}

	return ts, true, nil
}

func (c *SQL) SetWarning(ctx context.Context, userID int64, ts int64) error {
	_, err := c.db.ExecContext(
		ctx,
		c.rebind(`INSERT INTO warnings (user_id, last_warning_ts)
			VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE
			    SET last_warning_ts = excluded.last_warning_ts`),
		userID, ts,
	)
	if err != nil {
		return fmt.Errorf("upserting warning: %w", err)
	}

	return nil
}

func (c *SQL) ListWarnings(ctx context.Context) (map[int64]int64, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT user_id, last_warning_ts FROM warnings")
	if err != nil {
		return nil, fmt.Errorf("selecting warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[int64]int64)
	for rows.Next() {
		var userID, ts int64
		if err := rows.Scan(&userID, &ts); err != nil {
			return nil, fmt.Errorf("scanning warning: %w", err)
		}
		result[userID] = ts
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating warnings: %w", err)
	}

	return result, nil
}

func prepare(ctx context.Context, db *sql.DB, driver string) error {
	if isSQLite(driver) {
		// a single connection serializes writers and keeps ":memory:"
		// databases consistent across queries
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("setting WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	return nil
}

// rebind converts "?" placeholders to the "$n" form postgres expects.
func (c *SQL) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}

func ensureDir(path string) error {
	if path == "" || strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	return nil
}
