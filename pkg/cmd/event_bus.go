// Package cmd provides common initialization for command-line entrypoints.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/flowdeck/flowdeck/pkg/channels/kafka"
	"github.com/flowdeck/flowdeck/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus. Kafka carries events across
// processes; the in-memory channel is for single-process deployments and
// keeps the same publish semantics.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, "flowdeck")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "memory":
		channel := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)

		return eventbus.NewWatermillEventBus(channel, channel), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
