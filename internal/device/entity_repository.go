package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteEntityRepository implements EntityRepository using SQLite.
type SQLiteEntityRepository struct {
	db *sql.DB
}

// NewSQLiteEntityRepository creates a new SQLite-backed entity repository.
// The db parameter should be an open SQLite connection with the entities
// table migrated.
func NewSQLiteEntityRepository(db *sql.DB) *SQLiteEntityRepository {
	return &SQLiteEntityRepository{db: db}
}

// Upsert inserts or replaces a registration.
func (r *SQLiteEntityRepository) Upsert(ctx context.Context, record EntityRecord) error {
	query := `
		INSERT INTO entities (stable_id, display_name)
		VALUES (?, ?)
		ON CONFLICT(stable_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = datetime('now')`

	if _, err := r.db.ExecContext(ctx, query, record.StableID, record.DisplayName); err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

// GetByStableID retrieves a registration by stable identifier.
func (r *SQLiteEntityRepository) GetByStableID(ctx context.Context, id string) (*EntityRecord, error) {
	query := `SELECT stable_id, display_name FROM entities WHERE stable_id = ?`

	var record EntityRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(&record.StableID, &record.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity by stable_id: %w", err)
	}
	return &record, nil
}

// List retrieves all registrations.
func (r *SQLiteEntityRepository) List(ctx context.Context) ([]EntityRecord, error) {
	query := `SELECT stable_id, display_name FROM entities ORDER BY stable_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var records []EntityRecord
	for rows.Next() {
		var record EntityRecord
		if err := rows.Scan(&record.StableID, &record.DisplayName); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}
	return records, nil
}

// Delete removes a registration by stable identifier.
func (r *SQLiteEntityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE stable_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrEntityNotFound
	}
	return nil
}
