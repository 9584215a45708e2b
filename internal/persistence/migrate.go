package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; user_version records how many ran.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS device_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag TEXT NOT NULL,
		level INTEGER NOT NULL,
		message TEXT NOT NULL,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_device_logs_received_at ON device_logs(received_at);
	`,
	`
	CREATE TABLE IF NOT EXISTS sensor_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		moisture_json TEXT NOT NULL,
		temperature REAL NOT NULL,
		pressure REAL NOT NULL,
		water_level INTEGER NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sensor_samples_at ON sensor_samples(at);
	`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("record schema version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}

// SchemaVersion reports how many migrations have been applied.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	return version, nil
}
