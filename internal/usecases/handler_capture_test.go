package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waflow/internal/entities"
)

const captureEmailConfig = `{
	"field": "email",
	"prompt": "¿Cuál es tu correo, {nombre}?",
	"validation": "email",
	"saveToUser": true,
	"nextNodeId": "n-after"
}`

func captureHC(awaitingField string, msg *entities.IncomingMessage) *HandlerContext {
	session := testSession("flow-1", "c1")
	if awaitingField != "" {
		session.Context = entities.AwaitPatch(entities.AwaitField, awaitingField)
	}
	hc := hcFor(session, msg)
	hc.Node = testNode("c1", "flow-1", entities.NodeCaptureData, captureEmailConfig, nil)
	return hc
}

func TestCaptureHandler_FirstPhasePromptsAndWaits(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewCaptureHandler(gateway, newFakeUserStore(), testLogger())

	result, err := handler.Execute(context.Background(), captureHC("", textMsg("hola")))

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "¿Cuál es tu correo, Laura?", gateway.sent[0].Text)

	awaiting := result.Patch.Awaiting()
	assert.Equal(t, entities.AwaitField, awaiting.Kind)
	assert.Equal(t, "email", awaiting.Field)
	assert.Empty(t, result.NextNodeID)
}

func TestCaptureHandler_ValidInputStoresAndAdvances(t *testing.T) {
	users := newFakeUserStore()
	handler := NewCaptureHandler(&fakeGateway{}, users, testLogger())

	result, err := handler.Execute(context.Background(), captureHC("email", textMsg(" laura@example.com ")))

	require.NoError(t, err)
	assert.Equal(t, "n-after", result.NextNodeID)
	assert.Equal(t, "laura@example.com", result.Patch["email"])
	assert.True(t, result.Patch.Awaiting().Zero())
	// saveToUser copies the value onto the profile too.
	assert.Equal(t, "laura@example.com", users.profileUpdates["email"])
}

func TestCaptureHandler_InvalidInputRepromptsWithPrefix(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewCaptureHandler(gateway, newFakeUserStore(), testLogger())

	result, err := handler.Execute(context.Background(), captureHC("email", textMsg("no-es-un-correo")))

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, invalidFormatPrefix+"¿Cuál es tu correo, Laura?", gateway.sent[0].Text)

	// Still waiting on the same field.
	awaiting := result.Patch.Awaiting()
	assert.Equal(t, entities.AwaitField, awaiting.Kind)
	assert.Equal(t, "email", awaiting.Field)
	assert.Empty(t, result.NextNodeID)
}

func TestCaptureHandler_DifferentAwaitedFieldReprompts(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewCaptureHandler(gateway, newFakeUserStore(), testLogger())

	// A stale marker for another field must not swallow this node's input.
	result, err := handler.Execute(context.Background(), captureHC("nombre", textMsg("laura@example.com")))

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "email", result.Patch.Awaiting().Field)
}

func TestCaptureHandler_MissingFieldFails(t *testing.T) {
	handler := NewCaptureHandler(&fakeGateway{}, newFakeUserStore(), testLogger())

	hc := hcFor(testSession("flow-1", "c1"), textMsg("hola"))
	hc.Node = testNode("c1", "flow-1", entities.NodeCaptureData, `{"prompt":"¿?"}`, nil)

	_, err := handler.Execute(context.Background(), hc)
	assert.Error(t, err)
}

func TestValidCaptureInput(t *testing.T) {
	assert.True(t, ValidCaptureInput("laura@example.com", entities.ValidateEmail))
	assert.False(t, ValidCaptureInput("laura@example", entities.ValidateEmail))
	assert.False(t, ValidCaptureInput("laura example.com", entities.ValidateEmail))

	assert.True(t, ValidCaptureInput("+5215550001111", entities.ValidatePhone))
	assert.True(t, ValidCaptureInput("5215550001111", entities.ValidatePhone))
	assert.False(t, ValidCaptureInput("0123", entities.ValidatePhone))
	assert.False(t, ValidCaptureInput("tel: 555", entities.ValidatePhone))

	assert.True(t, ValidCaptureInput("cualquier cosa", entities.ValidateNone))
	assert.False(t, ValidCaptureInput("", entities.ValidateNone))
	assert.True(t, ValidCaptureInput("x", entities.ValidationRule("desconocida")))
}
