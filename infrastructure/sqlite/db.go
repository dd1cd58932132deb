package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps split read/write Bun connections over one sqlite file.
//
// The write handle is limited to a single connection with immediate
// transactions so commits from concurrent scan devices serialize cleanly;
// reads go through a small pooled read-only handle.
type DB struct {
	WriteSQL *sql.DB
	ReadSQL  *sql.DB
	W        *bun.DB
	R        *bun.DB
}

// OpenDB initializes sqlite handles for immediate writer tx and pooled reads.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	writeDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	readDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_query_only=1", path)

	wsql, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	wsql.SetMaxOpenConns(1)
	wsql.SetConnMaxLifetime(15 * time.Minute)

	// Touch the file through the writer before the read-only handle opens,
	// otherwise a fresh database cannot be opened query-only.
	if err := wsql.Ping(); err != nil {
		wsql.Close()
		return nil, fmt.Errorf("ping write db: %w", err)
	}

	rsql, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		wsql.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}
	rsql.SetMaxOpenConns(8)
	rsql.SetConnMaxIdleTime(5 * time.Minute)
	rsql.SetConnMaxLifetime(15 * time.Minute)

	if _, err := rsql.Exec("PRAGMA query_only = ON"); err != nil {
		wsql.Close()
		rsql.Close()
		return nil, fmt.Errorf("enable read query_only: %w", err)
	}

	return &DB{
		WriteSQL: wsql,
		ReadSQL:  rsql,
		W:        bun.NewDB(wsql, sqlitedialect.New()),
		R:        bun.NewDB(rsql, sqlitedialect.New()),
	}, nil
}

// Close closes read and write handles.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var first error
	if db.W != nil {
		if err := db.W.Close(); err != nil {
			first = err
		}
	}
	if db.R != nil {
		if err := db.R.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
