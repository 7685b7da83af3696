package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/feedloop/feedloop/app/database"
)

func receiveMessage(t *testing.T, messages <-chan *message.Message) []byte {
	t.Helper()

	select {
	case msg := <-messages:
		msg.Ack()
		return msg.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a message, got none")
	}
	return nil
}

func TestPublisherItemStored(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	notifications, err := bus.Subscribe(ctx, TopicItemNotifications)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	embeddings, err := bus.Subscribe(ctx, TopicEmbeddingRequests)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	pub := NewPublisher(bus)
	pub.ItemStored(&database.Item{
		ID:       "item-1",
		SourceID: "source-1",
		Title:    "Hello World",
		Body:     "Full body text",
	}, true)

	var notification ItemNotification
	if err := json.Unmarshal(receiveMessage(t, notifications), &notification); err != nil {
		t.Fatalf("Expected no error decoding notification, got: %v", err)
	}
	if notification.SourceID != "source-1" || notification.ItemID != "item-1" {
		t.Errorf("Expected the stored item announced, got %+v", notification)
	}
	if notification.Title != "Hello World" {
		t.Errorf("Expected title %q, got %q", "Hello World", notification.Title)
	}
	if !notification.New {
		t.Error("Expected the notification marked new")
	}

	var request EmbeddingRequest
	if err := json.Unmarshal(receiveMessage(t, embeddings), &request); err != nil {
		t.Fatalf("Expected no error decoding request, got: %v", err)
	}
	if request.ItemID != "item-1" {
		t.Errorf("Expected item id %q, got %q", "item-1", request.ItemID)
	}
	if request.Text != "Full body text" {
		t.Errorf("Expected the body as embedding text, got %q", request.Text)
	}
}

func TestPublisherItemStoredTitleFallback(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	embeddings, err := bus.Subscribe(context.Background(), TopicEmbeddingRequests)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// A body-less item still gets embedded from its title.
	NewPublisher(bus).ItemStored(&database.Item{
		ID:       "item-2",
		SourceID: "source-1",
		Title:    "Title Only",
	}, false)

	var request EmbeddingRequest
	if err := json.Unmarshal(receiveMessage(t, embeddings), &request); err != nil {
		t.Fatalf("Expected no error decoding request, got: %v", err)
	}
	if request.Text != "Title Only" {
		t.Errorf("Expected the title as embedding text, got %q", request.Text)
	}
}

func TestPublisherItemStoredUpdateNotMarkedNew(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	notifications, err := bus.Subscribe(context.Background(), TopicItemNotifications)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	NewPublisher(bus).ItemStored(&database.Item{
		ID:       "item-3",
		SourceID: "source-1",
		Title:    "Updated Item",
		Body:     "Body",
	}, false)

	var notification ItemNotification
	if err := json.Unmarshal(receiveMessage(t, notifications), &notification); err != nil {
		t.Fatalf("Expected no error decoding notification, got: %v", err)
	}
	if notification.New {
		t.Error("Expected an update not marked new")
	}
}

func TestPublisherEmbeddingRequested(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	embeddings, err := bus.Subscribe(context.Background(), TopicEmbeddingRequests)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	NewPublisher(bus).EmbeddingRequested("item-9", "freshly extracted article text")

	var request EmbeddingRequest
	if err := json.Unmarshal(receiveMessage(t, embeddings), &request); err != nil {
		t.Fatalf("Expected no error decoding request, got: %v", err)
	}
	if request.ItemID != "item-9" {
		t.Errorf("Expected item id %q, got %q", "item-9", request.ItemID)
	}
	if request.Text != "freshly extracted article text" {
		t.Errorf("Expected the extracted text, got %q", request.Text)
	}
}

func TestPublisherWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Nobody listening: events are dropped, the pipeline never notices.
	NewPublisher(bus).ItemStored(&database.Item{ID: "item-1", SourceID: "source-1"}, true)
}
