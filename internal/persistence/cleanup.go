package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// historyTables are emptied by ClearDatabase. The schema version is kept.
var historyTables = []string{"device_logs", "sensor_samples"}

// ClearDatabase drops all stored history in one transaction and restarts the
// row ids, so the next insert looks like a fresh install.
func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range historyTables {
		// Table names come from the fixed list above.
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(historyTables)), ",")
	args := make([]any, len(historyTables))
	for i, table := range historyTables {
		args[i] = table
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("reset row ids: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear tx: %w", err)
	}

	return nil
}
