package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // register sqlite driver
)

const busyTimeoutMs = 5000

// connPragmas are applied by the driver to every pooled connection. The
// writer queue and UI reads use separate connections, so WAL and a busy
// timeout keep them from failing on each other's locks.
var connPragmas = []string{
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMs),
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// Open opens the sqlite file at path and migrates it to the current schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func dataSourceName(path string) string {
	q := url.Values{"_pragma": connPragmas}

	return path + "?" + q.Encode()
}
