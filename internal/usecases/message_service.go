package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// fallbackWelcome is sent when no flow at all resolves for a tenant.
const fallbackWelcome = "¡Hola! Bienvenido a nuestro servicio. Escribe MENU para ver las opciones."

// MessageService orchestrates one inbound message end to end: user and
// session resolution, transcript audit, flow selection and execution. Work
// is serialized per user so duplicate or rapid-fire webhook deliveries
// cannot race the session state.
type MessageService struct {
	users      interfaces.UserStore
	sessionSvc *SessionService
	resolver   *FlowResolver
	executor   *Executor
	sessions   interfaces.SessionStore
	gateway    interfaces.MessageGateway
	messages   interfaces.MessageLog
	locks      interfaces.Locker
	log        *logging.Logger
}

func NewMessageService(
	users interfaces.UserStore,
	sessionSvc *SessionService,
	resolver *FlowResolver,
	executor *Executor,
	sessions interfaces.SessionStore,
	gateway interfaces.MessageGateway,
	messages interfaces.MessageLog,
	locks interfaces.Locker,
	log *logging.Logger,
) *MessageService {
	return &MessageService{
		users:      users,
		sessionSvc: sessionSvc,
		resolver:   resolver,
		executor:   executor,
		sessions:   sessions,
		gateway:    gateway,
		messages:   messages,
		locks:      locks,
		log:        log,
	}
}

// ProcessMessage handles one normalized inbound message for a tenant
// account. Errors are returned for the caller to log; the webhook transport
// acknowledges the provider regardless.
func (s *MessageService) ProcessMessage(ctx context.Context, tenant *entities.Tenant, account *entities.WhatsAppAccount, msg *entities.IncomingMessage, profileName string) error {
	unlock := s.locks.Lock(tenant.ID + ":" + msg.From)
	defer unlock()

	user, newUser, err := s.users.GetOrCreateUser(ctx, tenant.ID, msg.From, profileName)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	session, _, err := s.sessionSvc.ResolveSession(ctx, tenant, account.ID, user)
	if err != nil {
		return err
	}

	if err := s.messages.SaveInbound(ctx, session.ID, tenant.ID, msg); err != nil {
		s.log.Error("save inbound message", "error", err, "session_id", session.ID)
	}
	if msg.ID != "" {
		if err := s.gateway.MarkAsRead(ctx, account.ID, msg.ID); err != nil {
			s.log.Warn("mark message as read", "error", err, "message_id", msg.ID)
		}
	}

	// A session with no cursor is starting (or re-starting) a conversation,
	// whether it was just created or a previous flow already finished.
	if session.CurrentNodeID == "" {
		s.sessionSvc.SendWelcome(ctx, tenant, account.ID, user, session)
	}

	flow, reset, err := s.resolver.Resolve(ctx, tenant, session, msg, newUser)
	if err != nil {
		return fmt.Errorf("resolve flow: %w", err)
	}
	if flow == nil {
		s.log.Warn("no flow resolved", "tenant_id", tenant.ID, "user_id", user.ID)
		payload := entities.TextMessage(user.PhoneNumber, fallbackWelcome, session.ID, tenant.ID)
		if _, err := s.gateway.Send(ctx, account.ID, payload); err != nil {
			return fmt.Errorf("send fallback welcome: %w", err)
		}
		return nil
	}

	if reset || session.ActiveFlowID != flow.ID {
		// Entering a flow from the top: reset the cursor and drop any
		// pending two-phase marker before executing.
		session.ActiveFlowID = flow.ID
		session.CurrentNodeID = ""
		if err := s.sessions.UpdateSessionCursor(ctx, session.ID, "", flow.ID); err != nil {
			return fmt.Errorf("reset session cursor: %w", err)
		}
		if !session.Context.Awaiting().Zero() {
			patch := entities.ClearAwaitPatch()
			if err := s.sessions.MergeSessionContext(ctx, session.ID, patch); err != nil {
				return fmt.Errorf("clear awaiting marker: %w", err)
			}
			session.Context = session.Context.Merge(patch)
		}
	}

	hc := &HandlerContext{
		Tenant:    tenant,
		AccountID: account.ID,
		User:      user,
		Session:   session,
		Message:   msg,
	}
	return s.executor.Run(ctx, hc)
}
