package store

import (
	"context"
	"fmt"
)

// DeliveryStats holds aggregated delivery statistics for the ops endpoint.
type DeliveryStats struct {
	TotalRecords         int     `json:"total_records"`
	DeliveredCount       int     `json:"delivered_count"`
	PendingCount         int     `json:"pending_count"`
	SuccessRate          float64 `json:"success_rate"`
	AvgAttempts          float64 `json:"avg_attempts"`
	DeadLetterCount      int     `json:"dead_letter_count"`
	EnabledSubscriptions int     `json:"enabled_subscriptions"`
}

// GetDeliveryStats computes aggregates across the three tables.
func (s *PostgresStore) GetDeliveryStats(ctx context.Context) (*DeliveryStats, error) {
	var stats DeliveryStats

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE delivered_at IS NOT NULL) AS delivered,
			COUNT(*) FILTER (WHERE delivered_at IS NULL) AS pending,
			COALESCE(AVG(attempts) FILTER (WHERE attempts > 0), 0) AS avg_attempts
		FROM delivery_records
	`).Scan(&stats.TotalRecords, &stats.DeliveredCount, &stats.PendingCount, &stats.AvgAttempts)
	if err != nil {
		return nil, fmt.Errorf("querying delivery stats: %w", err)
	}

	if stats.TotalRecords > 0 {
		stats.SuccessRate = float64(stats.DeliveredCount) / float64(stats.TotalRecords) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM dead_letter_entries WHERE resolved_at IS NULL
	`).Scan(&stats.DeadLetterCount)
	if err != nil {
		return nil, fmt.Errorf("querying dead letter count: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM subscriptions WHERE enabled = true
	`).Scan(&stats.EnabledSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("querying subscription count: %w", err)
	}

	return &stats, nil
}
