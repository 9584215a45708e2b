package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/protocol"
)

type LogRepo struct {
	db *sql.DB
}

func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Insert(ctx context.Context, l domain.DeviceLog) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO device_logs(tag, level, message, received_at)
		VALUES(?, ?, ?, ?)
	`, l.Tag, int(l.Level), l.Message, toUnixMillis(l.ReceivedAt))
	if err != nil {
		return 0, fmt.Errorf("insert device log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("device log id: %w", err)
	}

	return id, nil
}

// ListRecent returns at most limit entries, oldest first.
func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]domain.DeviceLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tag, level, message, received_at FROM (
			SELECT id, tag, level, message, received_at
			FROM device_logs
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list device logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DeviceLog, 0, limit)
	for rows.Next() {
		var (
			l          domain.DeviceLog
			level      int
			receivedMs int64
		)
		if err := rows.Scan(&l.ID, &l.Tag, &level, &l.Message, &receivedMs); err != nil {
			return nil, fmt.Errorf("scan device log: %w", err)
		}
		l.Level = protocol.Level(level)
		l.ReceivedAt = fromUnixMillis(receivedMs)
		l.Source = domain.LogSourceHistory
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device logs: %w", err)
	}

	return out, nil
}

// PruneBefore deletes entries received before cutoff.
func (r *LogRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_logs WHERE received_at < ?`, toUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune device logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruned device logs count: %w", err)
	}

	return n, nil
}
