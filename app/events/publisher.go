package events

import (
	"cmp"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/feedloop/feedloop/app/database"
)

// EmbeddingRequest asks the embedding worker for a vector reference covering
// an item's text.
type EmbeddingRequest struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
}

// ItemNotification announces a stored item to downstream consumers.
type ItemNotification struct {
	SourceID string `json:"source_id"`
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	New      bool   `json:"new"`
}

// Publisher fans refresh pipeline events onto the bus. Events are
// fire-and-forget: publish failures are logged and never propagate into the
// pipeline.
type Publisher struct {
	bus *gochannel.GoChannel
}

func NewPublisher(bus *gochannel.GoChannel) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) ItemStored(item *database.Item, isNew bool) {
	p.publish(TopicItemNotifications, ItemNotification{
		SourceID: item.SourceID,
		ItemID:   item.ID,
		Title:    item.Title,
		New:      isNew,
	})
	p.publish(TopicEmbeddingRequests, EmbeddingRequest{
		ItemID: item.ID,
		Text:   cmp.Or(item.Body, item.Title),
	})
}

func (p *Publisher) EmbeddingRequested(itemID string, text string) {
	p.publish(TopicEmbeddingRequests, EmbeddingRequest{ItemID: itemID, Text: text})
}

func (p *Publisher) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event", "topic", topic, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := p.bus.Publish(topic, msg); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "error", err)
	}
}
