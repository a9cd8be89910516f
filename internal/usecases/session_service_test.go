package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_CreatesFreshSession(t *testing.T) {
	sessions := newFakeSessionStore()
	svc := NewSessionService(sessions, &fakeGateway{}, 30, testLogger())

	session, created, err := svc.ResolveSession(context.Background(), testTenant(), "acct-1", testUser())

	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, sessions.created, 1)
	assert.Equal(t, "tenant-1", session.TenantID)
	assert.Equal(t, "acct-1", session.WhatsAppAccountID)
	assert.Equal(t, "active", session.Status)
	assert.NotEmpty(t, session.ID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), session.ExpiresAt, 5*time.Second)
}

func TestSessionService_ExtendsExistingSession(t *testing.T) {
	sessions := newFakeSessionStore()
	existing := testSession("flow-1", "n1")
	sessions.active["user-1"] = existing

	svc := NewSessionService(sessions, &fakeGateway{}, 30, testLogger())
	session, created, err := svc.ResolveSession(context.Background(), testTenant(), "acct-1", testUser())

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, existing, session)
	assert.Contains(t, sessions.extended, existing.ID)
	assert.Empty(t, sessions.created)
}

func TestSessionService_ExpiredSessionReplaced(t *testing.T) {
	sessions := newFakeSessionStore()
	expired := testSession("flow-1", "n5")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	sessions.active["user-1"] = expired

	svc := NewSessionService(sessions, &fakeGateway{}, 30, testLogger())
	session, created, err := svc.ResolveSession(context.Background(), testTenant(), "acct-1", testUser())

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, expired.ID, session.ID)
	// A fresh session starts with no flow and an empty context.
	assert.Empty(t, session.ActiveFlowID)
	assert.Empty(t, session.CurrentNodeID)
	assert.Empty(t, session.Context)
}

func TestSessionService_TenantTimeoutApplies(t *testing.T) {
	sessions := newFakeSessionStore()
	svc := NewSessionService(sessions, &fakeGateway{}, 30, testLogger())

	tenant := testTenant()
	tenant.SessionTimeoutMinutes = 5

	session, _, err := svc.ResolveSession(context.Background(), tenant, "acct-1", testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), session.ExpiresAt, 5*time.Second)
}

func TestSessionService_WelcomePicksVariantByUser(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewSessionService(newFakeSessionStore(), gateway, 30, testLogger())

	tenant := testTenant()
	tenant.WelcomeMessageNew = "¡Bienvenido!"
	tenant.WelcomeMessageKnown = "Hola de nuevo, {nombre}"

	svc.SendWelcome(context.Background(), tenant, "acct-1", testUser(), testSession("", ""))
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "Hola de nuevo, Laura", gateway.lastSent().Text)

	stranger := testUser()
	stranger.Name = ""
	svc.SendWelcome(context.Background(), tenant, "acct-1", stranger, testSession("", ""))
	require.Len(t, gateway.sent, 2)
	assert.Equal(t, "¡Bienvenido!", gateway.lastSent().Text)
}

func TestSessionService_NoConfiguredWelcomeSendsNothing(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewSessionService(newFakeSessionStore(), gateway, 30, testLogger())

	svc.SendWelcome(context.Background(), testTenant(), "acct-1", testUser(), testSession("", ""))
	assert.Empty(t, gateway.sent)
}
