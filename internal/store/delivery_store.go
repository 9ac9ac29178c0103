package store

import (
	"context"
	"fmt"
	"time"

	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, subscription_id, event_type, entity_id, payload, idempotency_key, attempts, last_status, last_error, not_before, delivered_at, created_at`

// NewDeliveryRecord holds the immutable fields of a record at creation.
type NewDeliveryRecord struct {
	SubscriptionID string
	EventType      string
	EntityID       string
	Payload        []byte
	IdempotencyKey string
}

// CreateDeliveryRecord inserts a record with attempts = 0. The payload is
// never rewritten afterwards.
func (s *PostgresStore) CreateDeliveryRecord(ctx context.Context, rec NewDeliveryRecord) (*domain.DeliveryRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO delivery_records (subscription_id, event_type, entity_id, payload, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+deliveryColumns,
		rec.SubscriptionID, rec.EventType, rec.EntityID, rec.Payload, rec.IdempotencyKey,
	)

	out, err := scanDeliveryRecord(row)
	if err != nil {
		return nil, fmt.Errorf("inserting delivery record: %w", err)
	}
	return out, nil
}

// RecentExists is the dedup ledger: does a record with this idempotency key
// exist inside the window? Best-effort: concurrent dispatches racing within
// the window may both pass, which is acceptable under at-least-once
// delivery.
func (s *PostgresStore) RecentExists(ctx context.Context, idempotencyKey string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window)

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM delivery_records
			WHERE idempotency_key = $1 AND created_at > $2
		)
	`, idempotencyKey, cutoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking dedup window: %w", err)
	}
	return exists, nil
}

// GetDeliveryRecord returns nil without error when the id is unknown.
func (s *PostgresStore) GetDeliveryRecord(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	rec, err := scanDeliveryRecord(s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery record: %w", err)
	}
	return rec, nil
}

// MarkDelivered records a successful attempt: attempts++, status, and the
// delivered_at terminal marker, in one atomic update. A record that is
// already terminal is left untouched.
func (s *PostgresStore) MarkDelivered(ctx context.Context, id string, httpStatus int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET attempts = attempts + 1,
		    last_status = $2,
		    last_error = NULL,
		    not_before = NULL,
		    delivered_at = NOW()
		WHERE id = $1 AND delivered_at IS NULL
	`, id, httpStatus)
	if err != nil {
		return fmt.Errorf("marking delivered: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery record not found or already delivered")
	}
	return nil
}

// RecordFailure records a failed attempt in one atomic update: attempts++,
// last status/error, and the earliest time the next attempt may run. It
// returns the attempt count after the increment, which the executor
// compares against the retry budget.
func (s *PostgresStore) RecordFailure(ctx context.Context, id string, httpStatus *int, lastError string, notBefore *time.Time) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE delivery_records
		SET attempts = attempts + 1,
		    last_status = $2,
		    last_error = $3,
		    not_before = $4
		WHERE id = $1 AND delivered_at IS NULL
		RETURNING attempts
	`, id, httpStatus, lastError, notBefore).Scan(&attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("delivery record not found or already delivered")
		}
		return 0, fmt.Errorf("recording failure: %w", err)
	}
	return attempts, nil
}

// ListDeliveryRecords returns records, newest first, with optional filters.
func (s *PostgresStore) ListDeliveryRecords(ctx context.Context, subscriptionID, eventType string, limit int) ([]domain.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if subscriptionID != "" {
		conditions = append(conditions, fmt.Sprintf("subscription_id = $%d", argIdx))
		args = append(args, subscriptionID)
		argIdx++
	}
	if eventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, eventType)
		argIdx++
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery records: %w", err)
	}
	defer rows.Close()

	records := []domain.DeliveryRecord{}
	for rows.Next() {
		rec, err := scanDeliveryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func scanDeliveryRecord(row pgx.Row) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	var payload []byte
	err := row.Scan(
		&rec.ID, &rec.SubscriptionID, &rec.EventType, &rec.EntityID,
		&payload, &rec.IdempotencyKey, &rec.Attempts,
		&rec.LastStatus, &rec.LastError, &rec.NotBefore,
		&rec.DeliveredAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Payload = payload
	return &rec, nil
}
