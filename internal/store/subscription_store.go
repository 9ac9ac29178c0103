package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contentloop/webhook-relay/internal/domain"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, name, target_url, secret, event_types, enabled, retry_budget, headers, created_at, updated_at`

// CreateSubscription inserts a subscription, generating its signing secret.
// A zero retry budget in the request falls back to defaultBudget.
func (s *PostgresStore) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest, defaultBudget int) (*domain.Subscription, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	budget := req.RetryBudget
	if budget == 0 {
		budget = defaultBudget
	}
	if budget < 1 {
		return nil, fmt.Errorf("retry budget must be >= 1")
	}

	headers, err := marshalHeaders(req.Headers)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (name, target_url, secret, event_types, retry_budget, headers)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+subscriptionColumns,
		req.Name, req.TargetURL, secret, req.EventTypes, budget, headers,
	)

	return scanSubscription(row)
}

// GetSubscription returns nil without error when the id is unknown. The
// executor relies on that to detect deleted subscriptions.
func (s *PostgresStore) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

// FindMatching returns all enabled subscriptions whose event set contains
// eventType. The enabled predicate is pushed into the query so no stale
// process-local cache can reintroduce disabled targets.
func (s *PostgresStore) FindMatching(ctx context.Context, eventType string) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE enabled = true AND $1 = ANY(event_types)
	`, eventType)
	if err != nil {
		return nil, fmt.Errorf("finding matching subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	return subs, rows.Err()
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, id string, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *req.Name)
		argIdx++
	}
	if req.TargetURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("target_url = $%d", argIdx))
		args = append(args, *req.TargetURL)
		argIdx++
	}
	if req.EventTypes != nil {
		setClauses = append(setClauses, fmt.Sprintf("event_types = $%d", argIdx))
		args = append(args, req.EventTypes)
		argIdx++
	}
	if req.Enabled != nil {
		setClauses = append(setClauses, fmt.Sprintf("enabled = $%d", argIdx))
		args = append(args, *req.Enabled)
		argIdx++
	}
	if req.RetryBudget != nil {
		if *req.RetryBudget < 1 {
			return nil, fmt.Errorf("retry budget must be >= 1")
		}
		setClauses = append(setClauses, fmt.Sprintf("retry_budget = $%d", argIdx))
		args = append(args, *req.RetryBudget)
		argIdx++
	}
	if req.Headers != nil {
		headers, err := marshalHeaders(*req.Headers)
		if err != nil {
			return nil, err
		}
		setClauses = append(setClauses, fmt.Sprintf("headers = $%d", argIdx))
		args = append(args, headers)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetSubscription(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE subscriptions SET %s
		WHERE id = $%d
		RETURNING `+subscriptionColumns,
		strings.Join(setClauses, ", "), argIdx)
	args = append(args, id)

	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	return sub, nil
}

// DeleteSubscription removes a subscription; its delivery records cascade
// away with it. Dead letters are standalone snapshots and survive.
func (s *PostgresStore) DeleteSubscription(ctx context.Context, id string) (bool, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var headers []byte
	err := row.Scan(
		&sub.ID, &sub.Name, &sub.TargetURL, &sub.Secret, &sub.EventTypes,
		&sub.Enabled, &sub.RetryBudget, &headers, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &sub.Headers); err != nil {
			return nil, fmt.Errorf("decoding headers: %w", err)
		}
	}
	return &sub, nil
}

func marshalHeaders(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encoding headers: %w", err)
	}
	return b, nil
}

func generateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "whr_" + hex.EncodeToString(bytes), nil
}
