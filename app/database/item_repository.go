package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ItemRepository = (*itemRepository)(nil)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, source_id, guid, link, title, body, author, image_url,
	fingerprint, embedding_id, published_at, extracted_at, created_at, updated_at`

func (r *itemRepository) GetItemBySourceAndFingerprint(ctx context.Context, sourceID, fingerprint string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE source_id = ? AND fingerprint = ?
	`, sourceID, fingerprint)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by fingerprint: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetItemCount(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE source_id = ?", sourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func (r *itemRepository) GetTotalItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total item count: %w", err)
	}
	return count, nil
}

// InsertItem stores a new item. The upsert clause makes a concurrent insert
// of the same (source_id, fingerprint) pair collapse into a metadata update
// instead of an error.
func (r *itemRepository) InsertItem(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.PublishedAt = item.PublishedAt.UTC()

	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO items (
				id, source_id, guid, link, title, body, author, image_url,
				fingerprint, published_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_id, fingerprint) DO UPDATE SET
				title = excluded.title,
				link = excluded.link,
				author = excluded.author,
				image_url = excluded.image_url,
				updated_at = excluded.updated_at
		`, item.ID, item.SourceID, item.GUID, item.Link, item.Title, item.Body,
			item.Author, item.ImageURL, item.Fingerprint, item.PublishedAt, now, now)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// UpdateItemContent refreshes the mutable metadata of an existing item in
// place. The fingerprint and created_at are identity and never change here.
func (r *itemRepository) UpdateItemContent(ctx context.Context, item *Item) error {
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE items
			SET title = ?, link = ?, author = ?, image_url = ?, published_at = ?, updated_at = ?
			WHERE id = ?
		`, item.Title, item.Link, item.Author, item.ImageURL,
			item.PublishedAt.UTC(), time.Now().UTC(), item.ID)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to update item content: %w", err)
	}

	return nil
}

// GetItemsOlderThan returns the ids of unpinned items published before the
// cutoff.
func (r *itemRepository) GetItemsOlderThan(ctx context.Context, sourceID string, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id
		FROM items i
		WHERE i.source_id = ?
		  AND i.published_at < ?
		  AND NOT EXISTS (SELECT 1 FROM pins p WHERE p.item_id = i.id)
	`, sourceID, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get items older than cutoff: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// GetItemsBeyondLimit ranks all of the source's items by recency and returns
// the ids of unpinned items beyond the keep window. Pinned items occupy their
// rank but are excluded from the result, so retained totals may exceed the
// keep count by the number of pins.
func (r *itemRepository) GetItemsBeyondLimit(ctx context.Context, sourceID string, keep int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM (
			SELECT i.id
			FROM items i
			WHERE i.source_id = ?
			ORDER BY i.published_at DESC, i.created_at DESC
			LIMIT -1 OFFSET ?
		)
		WHERE NOT EXISTS (SELECT 1 FROM pins p WHERE p.item_id = id)
	`, sourceID, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to get items beyond limit: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func (r *itemRepository) DeleteItemsByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var deleted int64
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	return int(deleted), nil
}

func (r *itemRepository) GetItemsForExtraction(ctx context.Context, sourceID string, limit int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE source_id = ?
		  AND extracted_at IS NULL
		  AND link != ''
		ORDER BY published_at DESC
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for extraction: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *itemRepository) UpdateExtractedBody(ctx context.Context, itemID string, body string, extractedAt time.Time) error {
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE items
			SET body = ?, extracted_at = ?, updated_at = ?
			WHERE id = ?
		`, body, extractedAt.UTC(), time.Now().UTC(), itemID)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to update extracted body: %w", err)
	}

	return nil
}

func (r *itemRepository) SetItemEmbedding(ctx context.Context, itemID string, embeddingID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET embedding_id = ?, updated_at = ?
		WHERE id = ?
	`, embeddingID, time.Now().UTC(), itemID)

	if err != nil {
		return fmt.Errorf("failed to set item embedding: %w", err)
	}

	return nil
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID, &item.SourceID, &item.GUID, &item.Link, &item.Title,
		&item.Body, &item.Author, &item.ImageURL, &item.Fingerprint,
		&item.EmbeddingID, &item.PublishedAt, &item.ExtractedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating id rows: %w", err)
	}

	return ids, nil
}
