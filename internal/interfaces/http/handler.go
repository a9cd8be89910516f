package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waflow/internal/entities"
	"waflow/internal/infrastructure"
	"waflow/internal/logging"
)

// webhookEnvelope mirrors the Meta Cloud API webhook payload down to the
// message level. Messages decode straight into entities.IncomingMessage.
type webhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []webhookContact           `json:"contacts"`
	Messages []entities.IncomingMessage `json:"messages"`
	Statuses []webhookStatus            `json:"statuses"`
}

// webhookStatus is a delivery/read receipt for an outbound message.
type webhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// The webhook handler's collaborators, satisfied by the repositories and
// the message service.
type tenantStore interface {
	GetTenantBySlug(ctx context.Context, slug string) (*entities.Tenant, error)
}

type accountStore interface {
	GetAccountsByTenant(ctx context.Context, tenantID string) ([]*entities.WhatsAppAccount, error)
	GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.WhatsAppAccount, error)
}

type webhookLogStore interface {
	Insert(ctx context.Context, tenantID, method string, headers, body []byte, status int, webhookErr string) error
}

type inboundProcessor interface {
	ProcessMessage(ctx context.Context, tenant *entities.Tenant, account *entities.WhatsAppAccount, msg *entities.IncomingMessage, profileName string) error
}

// Handler serves the per-tenant webhook endpoints.
type Handler struct {
	messageService inboundProcessor
	tenantRepo     tenantStore
	accountRepo    accountStore
	webhookLogRepo webhookLogStore
	logWebhooks    bool
	log            *logging.Logger
}

func NewHandler(service inboundProcessor, tenantRepo tenantStore, accountRepo accountStore, webhookLogRepo webhookLogStore, logWebhooks bool, log *logging.Logger) *Handler {
	return &Handler{
		messageService: service,
		tenantRepo:     tenantRepo,
		accountRepo:    accountRepo,
		webhookLogRepo: webhookLogRepo,
		logWebhooks:    logWebhooks,
		log:            log,
	}
}

// SetupRoutes registers the webhook and admin API routes.
func SetupRoutes(r *gin.Engine, h *Handler, adminHandler *AdminHandler, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(2 << 20)) // 2MB max request size
	r.Use(middleware.CORSMiddleware())

	// Meta Cloud API webhook, one endpoint per tenant
	r.GET("/webhook/:slug", h.VerifyWebhook)
	r.POST("/webhook/:slug", h.ReceiveWebhook)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.RateLimitPerClient(20, 40))
	adminHandler.RegisterRoutes(api)
}

// VerifyWebhook answers the Meta subscription handshake: echo the challenge
// when the verify token matches one of the tenant's accounts.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	tenant := h.resolveTenant(c)
	if tenant == nil {
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if !infrastructure.ValidWebhookChallenge(mode, challenge) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification request"})
		return
	}

	accounts, err := h.accountRepo.GetAccountsByTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		h.log.Error("load tenant accounts", "error", err, "tenant_id", tenant.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	for _, account := range accounts {
		if token != "" && token == account.WebhookVerifyToken {
			c.String(http.StatusOK, challenge)
			return
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Verify token mismatch"})
}

// ReceiveWebhook ingests inbound messages. It always acknowledges with 200
// once the tenant and signature check out; processing failures are logged,
// never surfaced, so the provider does not retry endlessly.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	tenant := h.resolveTenant(c)
	if tenant == nil {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.logWebhook(tenant.ID, c, body, http.StatusBadRequest, "malformed payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed payload"})
		return
	}

	// First pass: resolve accounts and check the body signature for every
	// change, so a bad signature anywhere rejects the whole envelope before
	// a single message is processed.
	signature := c.GetHeader("X-Hub-Signature-256")
	type accountChange struct {
		account *entities.WhatsAppAccount
		value   webhookValue
	}
	var accepted []accountChange
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, status := range change.Value.Statuses {
				h.log.Debug("message status update",
					"message_id", status.ID, "status", status.Status, "recipient", status.RecipientID)
			}
			if len(change.Value.Messages) == 0 {
				continue
			}

			account, err := h.accountRepo.GetAccountByPhoneNumberID(c.Request.Context(), change.Value.Metadata.PhoneNumberID)
			if err != nil {
				h.log.Error("lookup account", "error", err, "phone_number_id", change.Value.Metadata.PhoneNumberID)
				continue
			}
			if account == nil || account.TenantID != tenant.ID {
				h.log.Warn("webhook for unknown or foreign account",
					"phone_number_id", change.Value.Metadata.PhoneNumberID, "tenant_id", tenant.ID)
				continue
			}

			if account.AppSecret != "" && !infrastructure.ValidWebhookSignature(body, signature, account.AppSecret) {
				h.logWebhook(tenant.ID, c, body, http.StatusForbidden, "invalid signature")
				c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
				return
			}

			accepted = append(accepted, accountChange{account: account, value: change.Value})
		}
	}

	for _, ac := range accepted {
		h.processMessages(c.Request.Context(), tenant, ac.account, ac.value)
	}

	h.logWebhook(tenant.ID, c, body, http.StatusOK, "")
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// processMessages runs one change's messages in order, to completion,
// before the webhook response goes out. Processing failures are logged and
// the next message still runs.
func (h *Handler) processMessages(ctx context.Context, tenant *entities.Tenant, account *entities.WhatsAppAccount, value webhookValue) {
	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		names[contact.WaID] = contact.Profile.Name
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	for i := range value.Messages {
		msg := &value.Messages[i]
		if err := h.messageService.ProcessMessage(ctx, tenant, account, msg, names[msg.From]); err != nil {
			h.log.Error("process inbound message",
				"error", err, "tenant_id", tenant.ID, "from", msg.From, "message_id", msg.ID)
		}
	}
}

func (h *Handler) resolveTenant(c *gin.Context) *entities.Tenant {
	slug := c.Param("slug")
	if !ValidSlug(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return nil
	}
	tenant, err := h.tenantRepo.GetTenantBySlug(c.Request.Context(), slug)
	if err != nil {
		h.log.Error("lookup tenant", "error", err, "slug", slug)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return nil
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
		return nil
	}
	return tenant
}

func (h *Handler) logWebhook(tenantID string, c *gin.Context, body []byte, status int, webhookErr string) {
	if !h.logWebhooks {
		return
	}
	headers, err := json.Marshal(c.Request.Header)
	if err != nil {
		headers = []byte("{}")
	}
	if err := h.webhookLogRepo.Insert(c.Request.Context(), tenantID, c.Request.Method, headers, body, status, webhookErr); err != nil {
		h.log.Error("persist webhook log", "error", err, "tenant_id", tenantID)
	}
}
