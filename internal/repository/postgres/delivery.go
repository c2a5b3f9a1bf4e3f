package postgres

import (
	"context"
	"fmt"

	"github.com/clipfetch/clipfetch/internal/domain"
)

// DeliveryLogRepository implements domain.DeliveryLog using PostgreSQL
type DeliveryLogRepository struct {
	db *DB
}

// NewDeliveryLogRepository creates a new DeliveryLogRepository
func NewDeliveryLogRepository(db *DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Record inserts one delivery outcome
func (r *DeliveryLogRepository) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	query := `
		INSERT INTO deliveries (recipient, subject, status, attempts, last_error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		rec.Recipient, rec.Subject, rec.Status, rec.Attempts, rec.LastError, rec.RecordedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	return nil
}

// ListRecent returns the most recent delivery records, newest first
func (r *DeliveryLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.DeliveryRecord, error) {
	query := `
		SELECT id, recipient, subject, status, attempts, last_error, recorded_at
		FROM deliveries
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.DeliveryRecord, 0, limit)
	for rows.Next() {
		var rec domain.DeliveryRecord
		if err := rows.Scan(
			&rec.ID, &rec.Recipient, &rec.Subject, &rec.Status,
			&rec.Attempts, &rec.LastError, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}

	return records, nil
}
