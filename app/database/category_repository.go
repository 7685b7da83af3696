package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ CategoryRepository = (*categoryRepository)(nil)

type categoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	var category Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, refresh_interval_minutes, max_items, max_item_age_days,
		       created_at, updated_at
		FROM categories
		WHERE id = ?
	`, id).Scan(
		&category.ID, &category.UserID, &category.Name,
		&category.RefreshIntervalMinutes, &category.MaxItems, &category.MaxItemAgeDays,
		&category.CreatedAt, &category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return &category, nil
}

func (r *categoryRepository) CreateCategory(ctx context.Context, category *Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (
			id, user_id, name, refresh_interval_minutes, max_items, max_item_age_days,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, category.ID, category.UserID, category.Name,
		category.RefreshIntervalMinutes, category.MaxItems, category.MaxItemAgeDays, now, now)

	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

func (r *categoryRepository) UpdateCategory(ctx context.Context, category *Category) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, refresh_interval_minutes = ?, max_items = ?, max_item_age_days = ?,
		    updated_at = ?
		WHERE id = ?
	`, category.Name, category.RefreshIntervalMinutes, category.MaxItems,
		category.MaxItemAgeDays, time.Now().UTC(), category.ID)

	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	return nil
}
