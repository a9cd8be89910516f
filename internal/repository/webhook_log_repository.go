package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookLogRepository stores raw webhook requests for debugging. Writing
// is toggled by config; reads back the admin log view.
type WebhookLogRepository struct {
	db *pgxpool.Pool
}

func NewWebhookLogRepository(db *pgxpool.Pool) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

type WebhookLogEntry struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id,omitempty"`
	Method         string `json:"method"`
	Headers        []byte `json:"-"`
	Body           []byte `json:"-"`
	ResponseStatus int    `json:"response_status"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func (r *WebhookLogRepository) Insert(ctx context.Context, tenantID, method string, headers, body []byte, status int, webhookErr string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO webhook_logs (id, tenant_id, method, headers, body, response_status, error)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, NULLIF($7, ''))`,
		uuid.NewString(), tenantID, method, headers, body, status, webhookErr)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

func (r *WebhookLogRepository) List(ctx context.Context, tenantID string, limit int) ([]*WebhookLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(tenant_id::text, ''), method, COALESCE(headers, '{}'), COALESCE(body, '{}'),
		       COALESCE(response_status, 0), COALESCE(error, ''), created_at::text
		FROM webhook_logs
		WHERE ($1 = '' OR tenant_id = NULLIF($1, '')::uuid)
		ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*WebhookLogEntry
	for rows.Next() {
		var e WebhookLogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Method, &e.Headers, &e.Body,
			&e.ResponseStatus, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
