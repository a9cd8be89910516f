package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

// SessionRepository persists conversations. Cursor and context writes are
// single committed statements; the executor depends on each write being
// durable before the next handler runs.
type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, tenant_id, whatsapp_account_id, user_id,
	COALESCE(active_flow_id::text, ''), COALESCE(current_node_id, ''), COALESCE(context, '{}'),
	COALESCE(status, 'active'), COALESCE(session_expires_at, 'epoch'::timestamptz), created_at, updated_at`

func scanSession(row pgx.Row) (*entities.Session, error) {
	var s entities.Session
	var rawContext []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.WhatsAppAccountID, &s.UserID,
		&s.ActiveFlowID, &s.CurrentNodeID, &rawContext,
		&s.Status, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Context = entities.Context{}
	if len(rawContext) > 0 {
		if err := json.Unmarshal(rawContext, &s.Context); err != nil {
			return nil, fmt.Errorf("decode session context: %w", err)
		}
	}
	return &s, nil
}

func (r *SessionRepository) GetSessionByID(ctx context.Context, id string) (*entities.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM conversations WHERE id=$1 AND deleted_at IS NULL`, id))
}

// GetActiveSession returns the user's live session, if any: status active
// and not past its expiry window.
func (r *SessionRepository) GetActiveSession(ctx context.Context, userID string) (*entities.Session, error) {
	return scanSession(r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM conversations
		WHERE user_id=$1 AND status='active' AND deleted_at IS NULL
		  AND (session_expires_at IS NULL OR session_expires_at > NOW())
		ORDER BY created_at DESC LIMIT 1`, userID))
}

func (r *SessionRepository) CreateSession(ctx context.Context, s *entities.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = "active"
	}
	rawContext, err := entities.MarshalContext(s.Context)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO conversations (id, tenant_id, whatsapp_account_id, user_id, active_flow_id, current_node_id, context, status, session_expires_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, ''), $7, $8, $9)`,
		s.ID, s.TenantID, s.WhatsAppAccountID, s.UserID, s.ActiveFlowID, s.CurrentNodeID, rawContext, s.Status, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ExtendSession pushes the expiry window forward.
func (r *SessionRepository) ExtendSession(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET session_expires_at=$2, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return nil
}

// UpdateSessionCursor persists the current node and active flow; empty
// strings write NULL.
func (r *SessionRepository) UpdateSessionCursor(ctx context.Context, id, nodeID, flowID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET current_node_id=NULLIF($2, ''), active_flow_id=NULLIF($3, '')::uuid, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL`, id, nodeID, flowID)
	if err != nil {
		return fmt.Errorf("update session cursor: %w", err)
	}
	return nil
}

// MergeSessionContext applies the patch over the stored context using jsonb
// concatenation, matching entities.Context.Merge.
func (r *SessionRepository) MergeSessionContext(ctx context.Context, id string, patch entities.Context) error {
	raw, err := entities.MarshalContext(patch)
	if err != nil {
		return fmt.Errorf("encode context patch: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		UPDATE conversations SET context = COALESCE(context, '{}'::jsonb) || $2::jsonb, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL`, id, raw)
	if err != nil {
		return fmt.Errorf("merge session context: %w", err)
	}
	return nil
}

// ListSessionsByTenant backs the admin conversations view.
func (r *SessionRepository) ListSessionsByTenant(ctx context.Context, tenantID string, limit int) ([]*entities.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM conversations
		WHERE tenant_id=$1 AND deleted_at IS NULL
		ORDER BY updated_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*entities.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
