package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
	"waflow/internal/repository"
)

// AdminHandler serves the management API: tenants, accounts, flows, the
// conversation transcript views, and a direct send endpoint.
type AdminHandler struct {
	tenantRepo     *repository.TenantRepository
	accountRepo    *repository.AccountRepository
	flowRepo       *repository.FlowRepository
	sessionRepo    *repository.SessionRepository
	messageRepo    *repository.MessageRepository
	webhookLogRepo *repository.WebhookLogRepository
	gateway        interfaces.MessageGateway
	log            *logging.Logger
}

func NewAdminHandler(tenantRepo *repository.TenantRepository, accountRepo *repository.AccountRepository, flowRepo *repository.FlowRepository, sessionRepo *repository.SessionRepository, messageRepo *repository.MessageRepository, webhookLogRepo *repository.WebhookLogRepository, gateway interfaces.MessageGateway, log *logging.Logger) *AdminHandler {
	return &AdminHandler{
		tenantRepo:     tenantRepo,
		accountRepo:    accountRepo,
		flowRepo:       flowRepo,
		sessionRepo:    sessionRepo,
		messageRepo:    messageRepo,
		webhookLogRepo: webhookLogRepo,
		gateway:        gateway,
		log:            log,
	}
}

func (h *AdminHandler) RegisterRoutes(api *gin.RouterGroup) {
	// Tenant Routes
	api.GET("/tenants", h.ListTenants)
	api.POST("/tenants", h.CreateTenant)
	api.GET("/tenants/:id", h.GetTenant)
	api.PUT("/tenants/:id", h.UpdateTenant)
	api.DELETE("/tenants/:id", h.DeleteTenant)

	// Account Routes
	api.GET("/tenants/:id/accounts", h.ListAccounts)
	api.POST("/tenants/:id/accounts", h.CreateAccount)

	// Flow Routes
	api.GET("/tenants/:id/flows", h.ListFlows)
	api.POST("/tenants/:id/flows", h.CreateFlow)
	api.GET("/flows/:id", h.GetFlow)
	api.PUT("/flows/:id", h.UpdateFlow)
	api.DELETE("/flows/:id", h.DeleteFlow)
	api.GET("/flows/:id/nodes", h.GetFlowNodes)
	api.PUT("/flows/:id/nodes", h.ReplaceFlowNodes)

	// Conversation Routes
	api.GET("/tenants/:id/conversations", h.ListConversations)
	api.GET("/conversations/:id/messages", h.ListMessages)

	// Outbound send, bypassing flows
	api.POST("/tenants/:id/send", h.SendMessage)

	// Webhook debug log
	api.GET("/webhook-logs", h.ListWebhookLogs)
}

func (h *AdminHandler) ListTenants(c *gin.Context) {
	tenants, err := h.tenantRepo.ListTenants(c.Request.Context())
	if err != nil {
		h.log.Error("list tenants", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tenants"})
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var tenant entities.Tenant
	if err := c.ShouldBindJSON(&tenant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	tenant.Name = SanitizeString(TruncateString(tenant.Name, MaxNameLength))
	if tenant.Name == "" || !ValidSlug(tenant.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name required and slug must be lowercase alphanumeric"})
		return
	}
	if !ValidateLength(tenant.ResetKeyword, 0, MaxKeywordLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reset keyword too long"})
		return
	}
	if err := h.tenantRepo.CreateTenant(c.Request.Context(), &tenant); err != nil {
		h.log.Error("create tenant", "error", err, "slug", tenant.Slug)
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create tenant"})
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *AdminHandler) GetTenant(c *gin.Context) {
	tenant, err := h.tenantRepo.GetTenantByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tenant"})
		return
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *AdminHandler) UpdateTenant(c *gin.Context) {
	var tenant entities.Tenant
	if err := c.ShouldBindJSON(&tenant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	tenant.ID = c.Param("id")
	tenant.Name = SanitizeString(TruncateString(tenant.Name, MaxNameLength))
	if tenant.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name required"})
		return
	}
	if err := h.tenantRepo.UpdateTenant(c.Request.Context(), &tenant); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to update tenant"})
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *AdminHandler) DeleteTenant(c *gin.Context) {
	if err := h.tenantRepo.DeleteTenant(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tenant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountRepo.GetAccountsByTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch accounts"})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AdminHandler) CreateAccount(c *gin.Context) {
	var account entities.WhatsAppAccount
	var payload struct {
		entities.WhatsAppAccount
		AccessToken        string `json:"access_token"`
		WebhookVerifyToken string `json:"webhook_verify_token"`
		AppSecret          string `json:"app_secret"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	account = payload.WhatsAppAccount
	account.TenantID = c.Param("id")
	account.AccessToken = payload.AccessToken
	account.WebhookVerifyToken = payload.WebhookVerifyToken
	account.AppSecret = payload.AppSecret

	if account.PhoneNumber == "" || account.PhoneNumberID == "" || account.AccessToken == "" || account.WebhookVerifyToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number, phone_number_id, access_token and webhook_verify_token are required"})
		return
	}
	if err := h.accountRepo.CreateAccount(c.Request.Context(), &account); err != nil {
		h.log.Error("create account", "error", err, "tenant_id", account.TenantID)
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create account"})
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *AdminHandler) ListFlows(c *gin.Context) {
	flows, err := h.flowRepo.GetFlowsByTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flows"})
		return
	}
	c.JSON(http.StatusOK, flows)
}

func (h *AdminHandler) CreateFlow(c *gin.Context) {
	var flow entities.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	flow.TenantID = c.Param("id")
	flow.Name = SanitizeString(TruncateString(flow.Name, MaxNameLength))
	if flow.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name required"})
		return
	}
	if err := h.flowRepo.CreateFlow(c.Request.Context(), &flow); err != nil {
		h.log.Error("create flow", "error", err, "tenant_id", flow.TenantID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create flow"})
		return
	}
	c.JSON(http.StatusCreated, flow)
}

func (h *AdminHandler) GetFlow(c *gin.Context) {
	flow, err := h.flowRepo.GetFlowByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flow"})
		return
	}
	if flow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *AdminHandler) UpdateFlow(c *gin.Context) {
	var flow entities.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	flow.ID = c.Param("id")
	existing, err := h.flowRepo.GetFlowByID(c.Request.Context(), flow.ID)
	if err != nil || existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}
	flow.TenantID = existing.TenantID
	if err := h.flowRepo.UpdateFlow(c.Request.Context(), &flow); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flow"})
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *AdminHandler) DeleteFlow(c *gin.Context) {
	if err := h.flowRepo.DeleteFlow(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete flow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) GetFlowNodes(c *gin.Context) {
	nodes, err := h.flowRepo.GetNodesByFlow(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nodes"})
		return
	}
	c.JSON(http.StatusOK, nodes)
}

// ReplaceFlowNodes swaps the flow's whole node graph; the editor always
// saves all nodes at once.
func (h *AdminHandler) ReplaceFlowNodes(c *gin.Context) {
	flowID := c.Param("id")
	flow, err := h.flowRepo.GetFlowByID(c.Request.Context(), flowID)
	if err != nil || flow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}

	var nodes []*entities.Node
	if err := c.ShouldBindJSON(&nodes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	for _, n := range nodes {
		if !validNodeType(n.Type) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown node type: " + string(n.Type)})
			return
		}
	}
	if err := h.flowRepo.ReplaceNodes(c.Request.Context(), flowID, nodes); err != nil {
		h.log.Error("replace flow nodes", "error", err, "flow_id", flowID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save nodes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "count": len(nodes)})
}

func (h *AdminHandler) ListConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.sessionRepo.ListSessionsByTenant(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *AdminHandler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	messages, err := h.messageRepo.ListByConversation(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage delivers a one-off text outside any flow.
func (h *AdminHandler) SendMessage(c *gin.Context) {
	var payload struct {
		AccountID string `json:"account_id"`
		To        string `json:"to"`
		Text      string `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	payload.Text = SanitizeString(TruncateString(payload.Text, MaxMessageLength))
	if payload.To == "" || payload.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and text are required"})
		return
	}

	tenantID := c.Param("id")
	accountID := payload.AccountID
	if accountID == "" {
		accounts, err := h.accountRepo.GetAccountsByTenant(c.Request.Context(), tenantID)
		if err != nil || len(accounts) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Tenant has no accounts"})
			return
		}
		accountID = accounts[0].ID
	}

	providerID, err := h.gateway.Send(c.Request.Context(),
		accountID, entities.TextMessage(payload.To, payload.Text, "", tenantID))
	if err != nil {
		h.log.Error("admin send", "error", err, "tenant_id", tenantID, "to", payload.To)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Delivery failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent", "message_id": providerID})
}

func (h *AdminHandler) ListWebhookLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.webhookLogRepo.List(c.Request.Context(), c.Query("tenant_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch webhook logs"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func validNodeType(t entities.NodeType) bool {
	for _, known := range entities.NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}
