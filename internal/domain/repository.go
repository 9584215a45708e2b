package domain

import (
	"context"
	"time"
)

type LogRepository interface {
	Insert(ctx context.Context, l DeviceLog) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]DeviceLog, error)
}

type SampleRepository interface {
	Insert(ctx context.Context, s SensorSample) (int64, error)
	ListSince(ctx context.Context, since time.Time) ([]SensorSample, error)
}
