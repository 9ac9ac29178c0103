package store

import (
	"context"
	"fmt"
	"time"

	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/jackc/pgx/v5"
)

const deadLetterColumns = `id, job_type, subscription_id, event_type, payload, failure_reason, retry_count, first_failed_at, last_failed_at, created_at, resolved_at, resolved_by`

// DeadLetterRecord holds the snapshot taken when a delivery exhausts its
// retry budget.
type DeadLetterRecord struct {
	SubscriptionID string
	EventType      string
	Payload        []byte
	FailureReason  string
	RetryCount     int
	FirstFailedAt  time.Time
	LastFailedAt   time.Time
}

// InsertDeadLetter appends a terminal-failure record. The table has no
// foreign keys: the entry outlives both the delivery record and the
// subscription.
func (s *PostgresStore) InsertDeadLetter(ctx context.Context, rec DeadLetterRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letter_entries (job_type, subscription_id, event_type, payload, failure_reason, retry_count, first_failed_at, last_failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, domain.JobTypeWebhookDelivery, rec.SubscriptionID, rec.EventType,
		rec.Payload, rec.FailureReason, rec.RetryCount, rec.FirstFailedAt, rec.LastFailedAt)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns entries, newest first, with optional filters.
func (s *PostgresStore) ListDeadLetters(ctx context.Context, subscriptionID string, resolved bool, limit int) ([]domain.DeadLetterEntry, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_entries`
	args := []interface{}{}
	argIdx := 1

	if subscriptionID != "" {
		query += fmt.Sprintf(" WHERE subscription_id = $%d", argIdx)
		args = append(args, subscriptionID)
		argIdx++
	} else {
		query += " WHERE true"
	}

	if resolved {
		query += " AND resolved_at IS NOT NULL"
	} else {
		query += " AND resolved_at IS NULL"
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	entries := []domain.DeadLetterEntry{}
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// GetDeadLetter returns nil without error when the id is unknown.
func (s *PostgresStore) GetDeadLetter(ctx context.Context, id string) (*domain.DeadLetterEntry, error) {
	entry, err := scanDeadLetter(s.pool.QueryRow(ctx,
		`SELECT `+deadLetterColumns+` FROM dead_letter_entries WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying dead letter: %w", err)
	}
	return entry, nil
}

// ResolveDeadLetter marks an entry as inspected. This is an operator
// bookkeeping action only; there is no requeue.
func (s *PostgresStore) ResolveDeadLetter(ctx context.Context, id, resolvedBy string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE dead_letter_entries SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolving dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dead letter not found or already resolved")
	}
	return nil
}

func scanDeadLetter(row pgx.Row) (*domain.DeadLetterEntry, error) {
	var e domain.DeadLetterEntry
	var payload []byte
	err := row.Scan(
		&e.ID, &e.JobType, &e.SubscriptionID, &e.EventType, &payload,
		&e.FailureReason, &e.RetryCount, &e.FirstFailedAt, &e.LastFailedAt,
		&e.CreatedAt, &e.ResolvedAt, &e.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
