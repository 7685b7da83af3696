package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topics carried by the in-process event bus.
const (
	TopicEmbeddingRequests = "embedding.requests"
	TopicItemNotifications = "item.notifications"
)

// NewBus creates the in-process pub/sub bus. The output buffer decouples the
// refresh pipeline from slow subscribers.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		watermill.NewStdLogger(false, false),
	)
}
