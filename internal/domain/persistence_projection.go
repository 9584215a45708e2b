package domain

import (
	"context"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
)

// WriteQueue serializes persistence writes from async domain events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

func StartPersistenceProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, logRepo LogRepository, sampleRepo SampleRepository) {
	logSub := b.Subscribe(connectors.TopicDeviceLog)
	dashSub := b.Subscribe(connectors.TopicDashboard)

	go func() {
		defer b.Unsubscribe(logSub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-logSub:
				if !ok {
					return
				}
				msg, ok := raw.(connectors.DeviceLog)
				if !ok {
					continue
				}
				entry := DeviceLogFromEntry(msg.Entry, LogSourceLive, msg.ReceivedAt)
				queue.Enqueue("insert_device_log", func(writeCtx context.Context) error {
					_, err := logRepo.Insert(writeCtx, entry)

					return err
				})
			}
		}
	}()

	go func() {
		defer b.Unsubscribe(dashSub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-dashSub:
				if !ok {
					return
				}
				msg, ok := raw.(connectors.DashboardUpdate)
				if !ok {
					continue
				}
				sample := SampleFromDashboard(msg.Dashboard, msg.ReceivedAt)
				queue.Enqueue("insert_sensor_sample", func(writeCtx context.Context) error {
					_, err := sampleRepo.Insert(writeCtx, sample)

					return err
				})
			}
		}
	}()
}
