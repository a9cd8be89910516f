package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// SessionService resolves the conversation session for an inbound message
// and owns the expiry window. A session lives as long as the tenant's
// timeout; every inbound message slides the window forward.
type SessionService struct {
	sessions       interfaces.SessionStore
	gateway        interfaces.MessageGateway
	defaultTimeout int
	log            *logging.Logger
}

func NewSessionService(sessions interfaces.SessionStore, gateway interfaces.MessageGateway, defaultTimeoutMinutes int, log *logging.Logger) *SessionService {
	if defaultTimeoutMinutes <= 0 {
		defaultTimeoutMinutes = 30
	}
	return &SessionService{
		sessions:       sessions,
		gateway:        gateway,
		defaultTimeout: defaultTimeoutMinutes,
		log:            log,
	}
}

// ResolveSession returns the user's active session, extending its window, or
// creates a fresh one when none exists or the last one expired. The bool
// reports creation.
func (s *SessionService) ResolveSession(ctx context.Context, tenant *entities.Tenant, accountID string, user *entities.User) (*entities.Session, bool, error) {
	now := time.Now()
	expiresAt := now.Add(tenant.SessionTimeout(s.defaultTimeout))

	session, err := s.sessions.GetActiveSession(ctx, user.ID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup active session: %w", err)
	}
	if session != nil && !session.Expired(now) {
		if err := s.sessions.ExtendSession(ctx, session.ID, expiresAt); err != nil {
			return nil, false, fmt.Errorf("extend session: %w", err)
		}
		session.ExpiresAt = expiresAt
		return session, false, nil
	}

	session = &entities.Session{
		ID:                uuid.NewString(),
		TenantID:          tenant.ID,
		WhatsAppAccountID: accountID,
		UserID:            user.ID,
		Context:           entities.Context{},
		Status:            "active",
		ExpiresAt:         expiresAt,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// SendWelcome sends the tenant's configured greeting for a fresh session,
// picking the known-user variant when the user has a captured name. Tenants
// without a configured greeting send nothing; their flows open the
// conversation instead.
func (s *SessionService) SendWelcome(ctx context.Context, tenant *entities.Tenant, accountID string, user *entities.User, session *entities.Session) {
	message := tenant.WelcomeMessageNew
	if user.Known() {
		message = tenant.WelcomeMessageKnown
	}
	if message == "" {
		return
	}
	text := Substitute(message, session, user)
	payload := entities.TextMessage(user.PhoneNumber, text, session.ID, tenant.ID)
	if _, err := s.gateway.Send(ctx, accountID, payload); err != nil {
		s.log.Error("send welcome message", "error", err, "session_id", session.ID)
	}
}
