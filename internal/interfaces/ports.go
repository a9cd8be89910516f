// Package interfaces declares the ports the flow engine consumes. Concrete
// implementations live in repository (Postgres) and infrastructure (Meta
// Cloud API, in-process locks); tests use in-memory fakes.
package interfaces

import (
	"context"
	"time"

	"waflow/internal/entities"
)

// TenantStore resolves tenants and their channel accounts.
type TenantStore interface {
	GetTenantByID(ctx context.Context, id string) (*entities.Tenant, error)
}

// AccountStore resolves WhatsApp account credentials.
type AccountStore interface {
	GetAccountByID(ctx context.Context, id string) (*entities.WhatsAppAccount, error)
	GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.WhatsAppAccount, error)
}

// UserStore manages end users scoped by tenant.
type UserStore interface {
	// GetOrCreateUser resolves the user for (tenant, phone number),
	// creating it on first contact. The bool reports creation.
	GetOrCreateUser(ctx context.Context, tenantID, phoneNumber, displayName string) (*entities.User, bool, error)
	// UpdateUserProfile writes one captured field onto the user. Fields
	// without a dedicated column land in the metadata blob.
	UpdateUserProfile(ctx context.Context, userID, field, value string) error
}

// SessionStore manages conversation sessions and their persisted cursor and
// context. Cursor and context writes must commit before returning; the
// executor relies on that for crash recovery.
type SessionStore interface {
	GetActiveSession(ctx context.Context, userID string) (*entities.Session, error)
	CreateSession(ctx context.Context, s *entities.Session) error
	ExtendSession(ctx context.Context, id string, expiresAt time.Time) error
	// UpdateSessionCursor persists the current node and active flow. An
	// empty nodeID clears the cursor; an empty flowID clears the active
	// flow.
	UpdateSessionCursor(ctx context.Context, id, nodeID, flowID string) error
	// MergeSessionContext applies the patch over the stored context with
	// overwrite semantics (jsonb ||).
	MergeSessionContext(ctx context.Context, id string, patch entities.Context) error
}

// FlowStore is the read-only view of flow graphs the engine executes.
type FlowStore interface {
	GetFlowByID(ctx context.Context, id string) (*entities.Flow, error)
	GetDefaultFlow(ctx context.Context, tenantID string) (*entities.Flow, error)
	GetFlowByTrigger(ctx context.Context, tenantID string, trigger entities.TriggerType) (*entities.Flow, error)
	// GetFlowByKeyword matches the message text against keyword-triggered
	// flows, case-insensitively.
	GetFlowByKeyword(ctx context.Context, tenantID, keyword string) (*entities.Flow, error)
	GetNodeByID(ctx context.Context, id string) (*entities.Node, error)
	GetRootNodes(ctx context.Context, flowID string) ([]*entities.Node, error)
}

// MessageGateway delivers outbound content to the messaging provider.
// Delivery is at-least-once; the implementation retries internally and
// returns the provider message id of the successful attempt.
type MessageGateway interface {
	Send(ctx context.Context, accountID string, payload entities.Payload) (string, error)
	MarkAsRead(ctx context.Context, accountID, messageID string) error
}

// MessageLog persists the conversation transcript for audit.
type MessageLog interface {
	SaveInbound(ctx context.Context, conversationID, tenantID string, msg *entities.IncomingMessage) error
	SaveOutbound(ctx context.Context, conversationID, tenantID, providerMessageID string, payload entities.Payload) error
}

// Locker serializes work per key. The engine locks per user so concurrent
// webhook deliveries for the same user cannot race the session
// read-modify-persist sequence.
type Locker interface {
	Lock(key string) (unlock func())
}
