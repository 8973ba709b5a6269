package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mudhumeni-backend/internal/db"
)

// DatabaseStore stores preference records in PostgreSQL or SQLite.
type DatabaseStore struct {
	db *db.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// Put saves or updates the preference record for a phone number
func (ds *DatabaseStore) Put(ctx context.Context, p *Preference) error {
	if p == nil || p.Phone == "" || p.UserID == "" {
		return fmt.Errorf("phone_number and user_id are required")
	}

	query := `
		INSERT INTO preferences (phone_number, user_id, language, location, farming_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone_number)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			language = EXCLUDED.language,
			location = EXCLUDED.location,
			farming_type = EXCLUDED.farming_type,
			updated_at = EXCLUDED.updated_at
	`

	_, err := ds.db.ExecContext(ctx, query, p.Phone, p.UserID, p.Language, p.Location, p.FarmingType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return nil
}

// GetByPhone retrieves the preference record for a phone number
func (ds *DatabaseStore) GetByPhone(ctx context.Context, phone string) (*Preference, error) {
	if phone == "" {
		return nil, ErrInvalidKey
	}

	var p Preference
	query := `
		SELECT phone_number, user_id, language, location, farming_type, updated_at
		FROM preferences
		WHERE phone_number = $1
	`

	err := ds.db.QueryRowContext(ctx, query, phone).Scan(
		&p.Phone,
		&p.UserID,
		&p.Language,
		&p.Location,
		&p.FarmingType,
		&p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return &p, nil
}

// GetByUserID retrieves the most recently updated record for a user id
func (ds *DatabaseStore) GetByUserID(ctx context.Context, userID string) (*Preference, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	var p Preference
	query := `
		SELECT phone_number, user_id, language, location, farming_type, updated_at
		FROM preferences
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	err := ds.db.QueryRowContext(ctx, query, userID).Scan(
		&p.Phone,
		&p.UserID,
		&p.Language,
		&p.Location,
		&p.FarmingType,
		&p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get preferences by user: %w", err)
	}

	return &p, nil
}
