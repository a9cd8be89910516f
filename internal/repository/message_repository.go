package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

// MessageRepository persists the conversation transcript.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) SaveInbound(ctx context.Context, conversationID, tenantID string, msg *entities.IncomingMessage) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode inbound message: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, tenant_id, whatsapp_message_id, direction, type, content, content_text)
		VALUES ($1, $2, $3, $4, 'inbound', $5, $6, NULLIF($7, ''))`,
		uuid.NewString(), conversationID, tenantID, msg.ID, msg.Type, content, msg.Body())
	if err != nil {
		return fmt.Errorf("save inbound message: %w", err)
	}
	return nil
}

func (r *MessageRepository) SaveOutbound(ctx context.Context, conversationID, tenantID, providerMessageID string, payload entities.Payload) error {
	contentText := payload.Text
	if payload.Type == entities.MessageInteractive && payload.Interactive != nil {
		contentText = payload.Interactive.Body.Text
	}
	content, err := json.Marshal(map[string]any{
		"to":          payload.To,
		"type":        payload.Type,
		"text":        payload.Text,
		"interactive": payload.Interactive,
	})
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, tenant_id, whatsapp_message_id, direction, type, content, content_text, status)
		VALUES ($1, $2, $3, $4, 'outbound', $5, $6, NULLIF($7, ''), 'sent')`,
		uuid.NewString(), conversationID, tenantID, providerMessageID, payload.Type, content, contentText)
	if err != nil {
		return fmt.Errorf("save outbound message: %w", err)
	}
	return nil
}

// ListByConversation returns the transcript oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entities.StoredMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, tenant_id, COALESCE(whatsapp_message_id, ''), direction, type,
		       COALESCE(content, '{}'), COALESCE(content_text, ''), sent_at::text
		FROM messages
		WHERE conversation_id=$1 AND deleted_at IS NULL
		ORDER BY sent_at ASC LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*entities.StoredMessage
	for rows.Next() {
		var m entities.StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.TenantID, &m.WhatsAppMessageID,
			&m.Direction, &m.Type, &m.Content, &m.ContentText, &m.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
