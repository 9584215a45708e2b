// Package bus fans link and device events out to UI and service consumers.
package bus

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/cskr/pubsub"
)

const subscriberCapacity = 128

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// Option configures a PubSubBus.
type Option func(*PubSubBus)

// WithGuaranteedTopics marks topics whose messages must reach every subscriber.
// Publishing on them waits for a full subscriber buffer to drain instead of
// dropping the message.
func WithGuaranteedTopics(topics ...string) Option {
	return func(b *PubSubBus) {
		for _, topic := range topics {
			b.guaranteed[topic] = struct{}{}
		}
	}
}

type PubSubBus struct {
	ps         *pubsub.PubSub
	logger     *slog.Logger
	guaranteed map[string]struct{}
	closed     atomic.Bool
}

func New(logger *slog.Logger, opts ...Option) *PubSubBus {
	if logger == nil {
		logger = slog.Default().With("component", "bus")
	}

	b := &PubSubBus{
		ps:         pubsub.New(subscriberCapacity),
		logger:     logger,
		guaranteed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish delivers msg to the subscribers of topic. On guaranteed topics it
// waits for room in every subscriber buffer. Other topics are published without
// waiting, and a subscriber whose buffer is full misses the message.
func (b *PubSubBus) Publish(topic string, msg any) {
	if b.closed.Load() {
		b.logger.Debug("publish after close", "topic", topic, "payload_type", payloadType(msg))
		return
	}
	if _, ok := b.guaranteed[topic]; ok {
		b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg), "guaranteed", true)
		b.ps.Pub(msg, topic)

		return
	}
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.TryPub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	if b.closed.Load() {
		ch := make(Subscription)
		close(ch)

		return ch
	}
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)

	return ch
}

// Unsubscribe removes ch from topics, or from all of its topics when none are
// given. Removing every topic closes ch. In that case messages still in flight
// to ch are discarded, so a guaranteed publish never waits on a subscriber
// that has stopped reading.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if b.closed.Load() {
		return
	}
	if len(topics) == 0 {
		go func() {
			for range ch {
			}
		}()
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")

		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
