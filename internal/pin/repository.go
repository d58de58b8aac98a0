package pin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/snapper/internal/signal"
)

// Record is a persisted pin configuration.
type Record struct {
	ID        int
	Mode      signal.Mode
	Direction signal.Direction
	Period    float32
	UpdatedAt time.Time
}

// Repository persists pin configurations across restarts.
type Repository interface {
	// Save creates or replaces the record for rec.ID.
	Save(ctx context.Context, rec Record) error

	// Delete removes the record for id. Deleting a missing record is not an error.
	Delete(ctx context.Context, id int) error

	// List returns all records ordered by pin id.
	List(ctx context.Context) ([]Record, error)
}

// SQLiteRepository implements Repository on the pin_configs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts rec.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pin_configs (pin_id, mode, direction, period, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pin_id) DO UPDATE SET
			mode = excluded.mode,
			direction = excluded.direction,
			period = excluded.period,
			updated_at = excluded.updated_at`,
		rec.ID, int32(rec.Mode), int32(rec.Direction), float64(rec.Period),
		updated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving pin config %d: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the record for id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pin_configs WHERE pin_id = ?", id); err != nil {
		return fmt.Errorf("deleting pin config %d: %w", id, err)
	}
	return nil
}

// List returns all records ordered by pin id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT pin_id, mode, direction, period, updated_at FROM pin_configs ORDER BY pin_id")
	if err != nil {
		return nil, fmt.Errorf("querying pin configs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			mode, dir int32
			period    float64
			updated   string
		)
		if err := rows.Scan(&rec.ID, &mode, &dir, &period, &updated); err != nil {
			return nil, fmt.Errorf("scanning pin config: %w", err)
		}
		rec.Mode = signal.Mode(mode)
		rec.Direction = signal.Direction(dir)
		rec.Period = float32(period)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated) //nolint:errcheck // format is written by Save
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pin configs: %w", err)
	}
	return records, nil
}
