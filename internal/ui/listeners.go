package ui

import (
	"fmt"
	"sync"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
)

// listen feeds every value from src to handle on its own goroutine. The
// returned stop is idempotent; a value that races with stop is dropped. onStop
// runs once when stop is called.
func listen[T any](name string, src <-chan T, handle func(T), onStop func()) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case v, ok := <-src:
				if !ok {
					appLogger.Debug("listener source closed", "listener", name)
					return
				}
				select {
				case <-done:
					return
				default:
					handle(v)
				}
			}
		}
	}()

	return func() {
		once.Do(func() {
			appLogger.Debug("stopping listener", "listener", name)
			close(done)
			if onStop != nil {
				onStop()
			}
		})
	}
}

// startUIEventListeners routes link status and dropped-frame reports from the
// bus to the presenters.
func startUIEventListeners(
	messageBus bus.MessageBus,
	onConnStatus func(connectors.ConnectionStatus),
	onParseFailure func(connectors.ParseFailure),
) func() {
	if messageBus == nil {
		appLogger.Debug("skipping UI event listeners: message bus is nil")
		return func() {}
	}

	topics := []string{connectors.TopicConnStatus, connectors.TopicParseError}
	sub := messageBus.Subscribe(topics...)

	return listen[any]("bus", sub, func(raw any) {
		switch msg := raw.(type) {
		case connectors.ConnectionStatus:
			if onConnStatus != nil {
				onConnStatus(msg)
			}
		case connectors.ParseFailure:
			if onParseFailure != nil {
				onParseFailure(msg)
			}
		default:
			appLogger.Debug("ignoring unexpected UI payload", "payload_type", fmt.Sprintf("%T", raw))
		}
	}, func() {
		messageBus.Unsubscribe(sub)
	})
}

// startChangeListener calls onChange for every store change signal until stopped.
func startChangeListener(name string, changes <-chan struct{}, onChange func()) func() {
	if changes == nil || onChange == nil {
		return func() {}
	}

	return listen(name, changes, func(struct{}) { onChange() }, nil)
}
