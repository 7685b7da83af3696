package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

const sourceColumns = `id, url, title, settings, last_fetched_at, error_count, last_error, created_at, updated_at`

func (r *sourceRepository) GetSource(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE id = ?
	`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *sourceRepository) GetSourceByURL(ctx context.Context, url string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE url = ?
	`, url)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by URL: %w", err)
	}
	return source, nil
}

func (r *sourceRepository) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *sourceRepository) CreateSource(ctx context.Context, source *Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}

	settingsJSON, err := json.Marshal(source.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal source settings: %w", err)
	}

	now := time.Now().UTC()
	source.CreatedAt = now
	source.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sources (id, url, title, settings, error_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?)
	`, source.ID, source.URL, source.Title, string(settingsJSON), now, now)

	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

func (r *sourceRepository) UpdateSourceSeed(ctx context.Context, id string, title string, settings SourceSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal source settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE sources
		SET title = ?, settings = ?, updated_at = ?
		WHERE id = ?
	`, title, string(settingsJSON), time.Now().UTC(), id)

	if err != nil {
		return fmt.Errorf("failed to update source seed: %w", err)
	}

	return nil
}

func (r *sourceRepository) UpdateSourceTitle(ctx context.Context, id string, title string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET title = ?, updated_at = ?
		WHERE id = ?
	`, title, time.Now().UTC(), id)

	if err != nil {
		return fmt.Errorf("failed to update source title: %w", err)
	}

	return nil
}

func (r *sourceRepository) RecordRefreshSuccess(ctx context.Context, id string, fetchedAt time.Time) error {
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE sources
			SET last_fetched_at = ?, error_count = 0, last_error = '', updated_at = ?
			WHERE id = ?
		`, fetchedAt.UTC(), time.Now().UTC(), id)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to record refresh success: %w", err)
	}

	return nil
}

func (r *sourceRepository) RecordRefreshFailure(ctx context.Context, id string, message string) error {
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE sources
			SET error_count = error_count + 1, last_error = ?, updated_at = ?
			WHERE id = ?
		`, message, time.Now().UTC(), id)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to record refresh failure: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	var settingsJSON string

	err := row.Scan(
		&source.ID, &source.URL, &source.Title, &settingsJSON,
		&source.LastFetchedAt, &source.ErrorCount, &source.LastError,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(settingsJSON), &source.Settings); err != nil {
		// Malformed settings degrade to defaults rather than blocking the source
		slog.Warn("Failed to parse source settings, using defaults", "source_id", source.ID, "error", err)
		source.Settings = SourceSettings{}
	}

	return &source, nil
}
