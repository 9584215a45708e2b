package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irrigo/irrigo/internal/domain"
)

type SampleRepo struct {
	db *sql.DB
}

func NewSampleRepo(db *sql.DB) *SampleRepo {
	return &SampleRepo{db: db}
}

func (r *SampleRepo) Insert(ctx context.Context, s domain.SensorSample) (int64, error) {
	moisture := s.Moisture
	if moisture == nil {
		moisture = []float64{}
	}
	raw, err := json.Marshal(moisture)
	if err != nil {
		return 0, fmt.Errorf("encode moisture: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sensor_samples(moisture_json, temperature, pressure, water_level, at)
		VALUES(?, ?, ?, ?, ?)
	`, string(raw), s.Temperature, s.Pressure, boolToInt(s.WaterLevel), toUnixMillis(s.At))
	if err != nil {
		return 0, fmt.Errorf("insert sensor sample: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sensor sample id: %w", err)
	}

	return id, nil
}

// ListSince returns samples taken at or after since, oldest first.
func (r *SampleRepo) ListSince(ctx context.Context, since time.Time) ([]domain.SensorSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, moisture_json, temperature, pressure, water_level, at
		FROM sensor_samples
		WHERE at >= ?
		ORDER BY at ASC, id ASC
	`, toUnixMillis(since))
	if err != nil {
		return nil, fmt.Errorf("list sensor samples: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SensorSample, 0)
	for rows.Next() {
		var (
			s          domain.SensorSample
			rawMoist   string
			waterLevel int
			atMs       int64
		)
		if err := rows.Scan(&s.ID, &rawMoist, &s.Temperature, &s.Pressure, &waterLevel, &atMs); err != nil {
			return nil, fmt.Errorf("scan sensor sample: %w", err)
		}
		if err := json.Unmarshal([]byte(rawMoist), &s.Moisture); err != nil {
			return nil, fmt.Errorf("decode moisture of sample %d: %w", s.ID, err)
		}
		s.WaterLevel = waterLevel != 0
		s.At = fromUnixMillis(atMs)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor samples: %w", err)
	}

	return out, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}
