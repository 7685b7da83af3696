package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/feedloop/feedloop/app/database"
)

// EmbeddingClient turns text into a reference to a stored embedding. An
// empty id means the client declined and nothing is persisted.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) (string, error)
}

// NoopEmbeddingClient stands in when no embedding backend is configured.
type NoopEmbeddingClient struct{}

func (NoopEmbeddingClient) Embed(ctx context.Context, text string) (string, error) {
	slog.Debug("No embedding backend configured, skipping", "text_length", len(text))
	return "", nil
}

// EmbeddingWorker consumes embedding requests from the bus and records the
// resulting ids on items. Failures are logged per request; the worker never
// stops on them.
type EmbeddingWorker struct {
	bus      *gochannel.GoChannel
	client   EmbeddingClient
	itemRepo database.ItemRepository
}

func NewEmbeddingWorker(bus *gochannel.GoChannel, client EmbeddingClient, itemRepo database.ItemRepository) *EmbeddingWorker {
	return &EmbeddingWorker{
		bus:      bus,
		client:   client,
		itemRepo: itemRepo,
	}
}

// Run consumes until the context is cancelled or the bus closes.
func (w *EmbeddingWorker) Run(ctx context.Context) error {
	messages, err := w.bus.Subscribe(ctx, TopicEmbeddingRequests)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicEmbeddingRequests, err)
	}

	for msg := range messages {
		msg.Ack()

		var request EmbeddingRequest
		if err := json.Unmarshal(msg.Payload, &request); err != nil {
			slog.Error("Failed to decode embedding request", "message_id", msg.UUID, "error", err)
			continue
		}

		if err := w.process(ctx, request); err != nil {
			slog.Error("Failed to process embedding request", "item_id", request.ItemID, "error", err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) process(ctx context.Context, request EmbeddingRequest) error {
	embedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	embeddingID, err := w.client.Embed(embedCtx, request.Text)
	if err != nil {
		return fmt.Errorf("failed to embed text: %w", err)
	}
	if embeddingID == "" {
		return nil
	}

	if err := w.itemRepo.SetItemEmbedding(ctx, request.ItemID, embeddingID); err != nil {
		return err
	}

	slog.Debug("Embedding recorded", "item_id", request.ItemID, "embedding_id", embeddingID)
	return nil
}
