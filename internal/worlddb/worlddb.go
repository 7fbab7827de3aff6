// Package worlddb bootstraps the persistent world database file. The
// session runtime owns the schema and all reads/writes; this package
// only guarantees the file exists at the agreed location with sane
// connection defaults before handoff.
package worlddb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// connPragmas are applied to every pooled connection. WAL keeps
// readers from blocking the single writer; NORMAL synchronous
// survives process crashes without fsync-per-commit cost.
var connPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Bootstrap opens (creating if absent) the sqlite database at path
// and returns a connection pool for the session runtime to take over.
func Bootstrap(path string, poolSize int, logger zerolog.Logger) (*sqlitex.Pool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range connPragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("apply %q: %w", pragma, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open world database: %w", err)
	}
	logger.Info().Str("path", path).Int("pool_size", poolSize).Msg("world database ready")
	return pool, nil
}
