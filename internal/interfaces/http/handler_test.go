package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waflow/internal/entities"
	"waflow/internal/logging"
)

type fakeTenantStore struct {
	tenant *entities.Tenant
}

func (f *fakeTenantStore) GetTenantBySlug(_ context.Context, slug string) (*entities.Tenant, error) {
	if f.tenant != nil && f.tenant.Slug == slug {
		return f.tenant, nil
	}
	return nil, nil
}

type fakeWebhookAccountStore struct {
	accounts []*entities.WhatsAppAccount
}

func (f *fakeWebhookAccountStore) GetAccountsByTenant(_ context.Context, tenantID string) ([]*entities.WhatsAppAccount, error) {
	var out []*entities.WhatsAppAccount
	for _, a := range f.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeWebhookAccountStore) GetAccountByPhoneNumberID(_ context.Context, phoneNumberID string) (*entities.WhatsAppAccount, error) {
	for _, a := range f.accounts {
		if a.PhoneNumberID == phoneNumberID {
			return a, nil
		}
	}
	return nil, nil
}

type fakeWebhookLogStore struct {
	statuses []int
}

func (f *fakeWebhookLogStore) Insert(_ context.Context, _, _ string, _, _ []byte, status int, _ string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeInboundProcessor struct {
	froms []string
}

func (f *fakeInboundProcessor) ProcessMessage(_ context.Context, _ *entities.Tenant, _ *entities.WhatsAppAccount, msg *entities.IncomingMessage, _ string) error {
	f.froms = append(f.froms, msg.From)
	return nil
}

type webhookFixture struct {
	router    *gin.Engine
	processor *fakeInboundProcessor
	logs      *fakeWebhookLogStore
}

func newWebhookFixture(accounts ...*entities.WhatsAppAccount) *webhookFixture {
	gin.SetMode(gin.TestMode)
	tenants := &fakeTenantStore{tenant: &entities.Tenant{ID: "tenant-1", Slug: "acme", Name: "Acme"}}
	processor := &fakeInboundProcessor{}
	logs := &fakeWebhookLogStore{}
	handler := NewHandler(processor, tenants, &fakeWebhookAccountStore{accounts: accounts}, logs, true, logging.Discard())

	r := gin.New()
	r.GET("/webhook/:slug", handler.VerifyWebhook)
	r.POST("/webhook/:slug", handler.ReceiveWebhook)
	return &webhookFixture{router: r, processor: processor, logs: logs}
}

func signBody(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// messagesChange renders one webhook change with a single text message.
func messagesChange(phoneNumberID, from, body string) string {
	return fmt.Sprintf(`{"field":"messages","value":{
		"metadata":{"phone_number_id":%q},
		"contacts":[{"wa_id":%q,"profile":{"name":"Laura"}}],
		"messages":[{"id":"wamid.1","from":%q,"type":"text","text":{"body":%q}}]}}`,
		phoneNumberID, from, from, body)
}

func envelope(changes ...string) string {
	return fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"e1","changes":[%s]}]}`,
		strings.Join(changes, ","))
}

func postWebhook(f *webhookFixture, body, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/acme", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestVerifyWebhook_EchoesChallenge(t *testing.T) {
	f := newWebhookFixture(&entities.WhatsAppAccount{
		ID: "acct-1", TenantID: "tenant-1", PhoneNumberID: "111", WebhookVerifyToken: "tok-1",
	})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/webhook/acme?hub.mode=subscribe&hub.verify_token=tok-1&hub.challenge=12345", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerifyWebhook_RejectsWrongToken(t *testing.T) {
	f := newWebhookFixture(&entities.WhatsAppAccount{
		ID: "acct-1", TenantID: "tenant-1", PhoneNumberID: "111", WebhookVerifyToken: "tok-1",
	})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/webhook/acme?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReceiveWebhook_ProcessesSignedMessages(t *testing.T) {
	f := newWebhookFixture(&entities.WhatsAppAccount{
		ID: "acct-1", TenantID: "tenant-1", PhoneNumberID: "111", AppSecret: "s3cret",
	})

	body := envelope(messagesChange("111", "5215550001111", "hola"))
	w := postWebhook(f, body, signBody(body, "s3cret"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"5215550001111"}, f.processor.froms)
	assert.Equal(t, []int{http.StatusOK}, f.logs.statuses)
}

func TestReceiveWebhook_BadSignatureRejectsWholeEnvelope(t *testing.T) {
	// First account skips the signature check, the second one requires it.
	// A bad signature on any change must keep the whole envelope from being
	// processed, including the earlier passing change.
	f := newWebhookFixture(
		&entities.WhatsAppAccount{ID: "acct-1", TenantID: "tenant-1", PhoneNumberID: "111"},
		&entities.WhatsAppAccount{ID: "acct-2", TenantID: "tenant-1", PhoneNumberID: "222", AppSecret: "s3cret"},
	)

	body := envelope(
		messagesChange("111", "5215550001111", "hola"),
		messagesChange("222", "5215550002222", "hola"),
	)
	w := postWebhook(f, body, signBody(body, "not-the-secret"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.processor.froms)
	assert.Equal(t, []int{http.StatusForbidden}, f.logs.statuses)
}

func TestReceiveWebhook_UnknownAccountSkipped(t *testing.T) {
	f := newWebhookFixture(&entities.WhatsAppAccount{
		ID: "acct-1", TenantID: "tenant-1", PhoneNumberID: "111",
	})

	body := envelope(messagesChange("999", "5215550001111", "hola"))
	w := postWebhook(f, body, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.processor.froms)
}

func TestReceiveWebhook_MalformedPayloadRejected(t *testing.T) {
	f := newWebhookFixture()

	w := postWebhook(f, "{not json", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.processor.froms)
}
