package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/feedloop/feedloop/app/settings"
)

var _ PreferenceRepository = (*preferenceRepository)(nil)

type preferenceRepository struct {
	db *DB
}

func NewPreferenceRepository(db *DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetPreferences(ctx context.Context, userID string) (settings.Overrides, error) {
	var interval, maxItems, maxAge sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT refresh_interval_minutes, max_items, max_item_age_days
		FROM user_preferences
		WHERE user_id = ?
	`, userID).Scan(&interval, &maxItems, &maxAge)

	if err == sql.ErrNoRows {
		return settings.Overrides{}, nil
	}
	if err != nil {
		return settings.Overrides{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	return overridesFromNullable(interval, maxItems, maxAge), nil
}

func (r *preferenceRepository) UpsertPreferences(ctx context.Context, userID string, overrides settings.Overrides) error {
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, refresh_interval_minutes, max_items, max_item_age_days, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			refresh_interval_minutes = excluded.refresh_interval_minutes,
			max_items = excluded.max_items,
			max_item_age_days = excluded.max_item_age_days,
			updated_at = excluded.updated_at
	`, userID, overrides.RefreshIntervalMinutes, overrides.MaxItems, overrides.MaxItemAgeDays, now)

	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}
