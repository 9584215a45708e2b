package domain

import (
	"context"
	"fmt"
)

const defaultRecentLogsLoad = 200

func LoadStoresFromRepositories(ctx context.Context, logs *LogStore, logRepo LogRepository) error {
	entries, err := logRepo.ListRecent(ctx, defaultRecentLogsLoad)
	if err != nil {
		return fmt.Errorf("load device logs from db: %w", err)
	}
	for i := range entries {
		entries[i].Source = LogSourceHistory
	}
	logs.Load(entries)

	return nil
}
