package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Import the libSQL driver; registers "libsql" with database/sql.
	// Handles remote URLs (libsql://, https://, wss://).
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	// Import the pure-Go SQLite driver for local paths.
	_ "modernc.org/sqlite"
)

// Driver names used by Connect. Package-level for testing only; production
// always uses "libsql" for remote URLs and "sqlite" for local paths.
var (
	remoteDriver = "libsql"
	localDriver  = "sqlite"
)

// localParams enables WAL mode, a busy timeout, and foreign key enforcement
// on every pooled connection. Foreign keys must be on for message cascade
// deletes to work.
const localParams = "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Connect opens a database connection and verifies it with a ping.
//
// Supported URL forms:
//
//	Local path:     "data/parley.db"
//	Local file URL: "file:data/parley.db"
//	Remote Turso:   "libsql://[db-name].turso.io?authToken=[token]"
func Connect(dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	driver, dsn, err := resolveDSN(dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Verify the connection is actually reachable.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return conn, nil
}

// resolveDSN picks the driver for dbURL and normalises local paths into
// file: URIs carrying the connection pragmas.
func resolveDSN(dbURL string) (driver, dsn string, err error) {
	if isRemote(dbURL) {
		return remoteDriver, dbURL, nil
	}

	dsn = dbURL
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	if !isMemory(dsn) {
		path := strings.TrimPrefix(dsn, "file:")
		if q := strings.IndexByte(path, '?'); q >= 0 {
			path = path[:q]
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", "", fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	if strings.ContainsRune(dsn, '?') {
		dsn += "&" + localParams
	} else {
		dsn += "?" + localParams
	}
	return localDriver, dsn, nil
}

func isRemote(dbURL string) bool {
	return strings.HasPrefix(dbURL, "libsql://") ||
		strings.HasPrefix(dbURL, "https://") ||
		strings.HasPrefix(dbURL, "wss://")
}

func isMemory(dbURL string) bool {
	return strings.Contains(dbURL, ":memory:") || strings.Contains(dbURL, "mode=memory")
}
