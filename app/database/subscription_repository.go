package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/feedloop/feedloop/app/settings"
	"github.com/google/uuid"
)

var _ SubscriptionRepository = (*subscriptionRepository)(nil)

type subscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, source_id, category_id, display_name,
	refresh_interval_minutes, max_items, max_item_age_days, created_at, updated_at`

func (r *subscriptionRepository) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = ?
	`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (r *subscriptionRepository) ListSubscriptionsByUser(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) GetSubscriptionCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscription count: %w", err)
	}
	return count, nil
}

func (r *subscriptionRepository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, source_id, category_id, display_name,
			refresh_interval_minutes, max_items, max_item_age_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.UserID, sub.SourceID, sub.CategoryID, sub.DisplayName,
		sub.RefreshIntervalMinutes, sub.MaxItems, sub.MaxItemAgeDays, now, now)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET category_id = ?, display_name = ?,
		    refresh_interval_minutes = ?, max_items = ?, max_item_age_days = ?,
		    updated_at = ?
		WHERE id = ?
	`, sub.CategoryID, sub.DisplayName,
		sub.RefreshIntervalMinutes, sub.MaxItems, sub.MaxItemAgeDays,
		time.Now().UTC(), sub.ID)

	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) DeleteSubscription(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

const settingsChainColumns = `
	s.refresh_interval_minutes, s.max_items, s.max_item_age_days,
	c.refresh_interval_minutes, c.max_items, c.max_item_age_days,
	u.refresh_interval_minutes, u.max_items, u.max_item_age_days`

const settingsChainJoins = `
	FROM subscriptions s
	LEFT JOIN categories c ON c.id = s.category_id
	LEFT JOIN user_preferences u ON u.user_id = s.user_id`

// GetSettingsForSource pulls the full override chain of every subscriber of
// the source in one query, for source-level resolution.
func (r *subscriptionRepository) GetSettingsForSource(ctx context.Context, sourceID string) ([]settings.SubscriptionSettings, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+settingsChainColumns+settingsChainJoins+` WHERE s.source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for source: %w", err)
	}
	defer rows.Close()

	var chains []settings.SubscriptionSettings
	for rows.Next() {
		chain, err := scanSettingsChain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings chain: %w", err)
		}
		chains = append(chains, *chain)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings rows: %w", err)
	}

	return chains, nil
}

func (r *subscriptionRepository) GetSettingsForSubscription(ctx context.Context, id string) (*settings.SubscriptionSettings, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+settingsChainColumns+settingsChainJoins+` WHERE s.id = ?`, id)

	chain, err := scanSettingsChain(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for subscription: %w", err)
	}
	return chain, nil
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.SourceID, &sub.CategoryID, &sub.DisplayName,
		&sub.RefreshIntervalMinutes, &sub.MaxItems, &sub.MaxItemAgeDays,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanSettingsChain(row rowScanner) (*settings.SubscriptionSettings, error) {
	var vals [9]sql.NullInt64
	err := row.Scan(
		&vals[0], &vals[1], &vals[2],
		&vals[3], &vals[4], &vals[5],
		&vals[6], &vals[7], &vals[8],
	)
	if err != nil {
		return nil, err
	}

	return &settings.SubscriptionSettings{
		Subscription: overridesFromNullable(vals[0], vals[1], vals[2]),
		Category:     overridesFromNullable(vals[3], vals[4], vals[5]),
		User:         overridesFromNullable(vals[6], vals[7], vals[8]),
	}, nil
}

func overridesFromNullable(interval, maxItems, maxAge sql.NullInt64) settings.Overrides {
	return settings.Overrides{
		RefreshIntervalMinutes: nullableInt(interval),
		MaxItems:               nullableInt(maxItems),
		MaxItemAgeDays:         nullableInt(maxAge),
	}
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
