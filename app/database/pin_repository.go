package database

import (
	"context"
	"fmt"
	"time"
)

var _ PinRepository = (*pinRepository)(nil)

// pinRepository manages per-user pins. Pins are written by the reading UI
// layer; inside this service they only shield items from cleanup.
type pinRepository struct {
	db *DB
}

func NewPinRepository(db *DB) PinRepository {
	return &pinRepository{db: db}
}

func (r *pinRepository) PinItem(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pins (user_id, item_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, item_id) DO NOTHING
	`, userID, itemID, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to pin item: %w", err)
	}

	return nil
}

func (r *pinRepository) UnpinItem(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM pins WHERE user_id = ? AND item_id = ?
	`, userID, itemID)

	if err != nil {
		return fmt.Errorf("failed to unpin item: %w", err)
	}

	return nil
}
