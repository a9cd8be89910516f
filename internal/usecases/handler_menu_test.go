package usecases

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waflow/internal/entities"
)

const menuConfig = `{
	"header": "Sucursal Centro",
	"body": "¿Qué necesitas, {nombre}?",
	"footer": "Responde con una opción",
	"options": [
		{"id": "ventas", "title": "Ventas", "nextNodeId": "n-ventas"},
		{"id": "soporte", "title": "Soporte"}
	]
}`

func menuHC(awaiting bool, msg *entities.IncomingMessage) *HandlerContext {
	session := testSession("flow-1", "m1")
	if awaiting {
		session.Context = entities.AwaitPatch(entities.AwaitMenu, "")
	}
	hc := hcFor(session, msg)
	hc.Node = testNode("m1", "flow-1", entities.NodeMenu, menuConfig, map[string]string{"soporte": "n-soporte"})
	return hc
}

func TestMenuHandler_FirstPhaseSendsListAndWaits(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewMenuHandler(gateway, testLogger())

	result, err := handler.Execute(context.Background(), menuHC(false, textMsg("hola")))

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	sent := gateway.sent[0]
	require.NotNil(t, sent.Interactive)
	assert.Equal(t, "list", sent.Interactive.Type)
	assert.Equal(t, "¿Qué necesitas, Laura?", sent.Interactive.Body.Text)
	assert.Equal(t, "Sucursal Centro", sent.Interactive.Header.Text)
	assert.Equal(t, "Ver opciones", sent.Interactive.Action.Button)
	require.Len(t, sent.Interactive.Action.Sections, 1)
	assert.Len(t, sent.Interactive.Action.Sections[0].Rows, 2)

	assert.Empty(t, result.NextNodeID)
	assert.Equal(t, entities.AwaitMenu, result.Patch.Awaiting().Kind)
}

func TestMenuHandler_ListReplyFollowsOptionTarget(t *testing.T) {
	handler := NewMenuHandler(&fakeGateway{}, testLogger())

	result, err := handler.Execute(context.Background(), menuHC(true, listReplyMsg("ventas", "Ventas")))

	require.NoError(t, err)
	assert.Equal(t, "n-ventas", result.NextNodeID)
	assert.True(t, result.Patch.Awaiting().Zero())
}

func TestMenuHandler_ListReplyFallsBackToNodeEdge(t *testing.T) {
	handler := NewMenuHandler(&fakeGateway{}, testLogger())

	// "soporte" has no option target, so the node edge keyed by the
	// option id applies.
	result, err := handler.Execute(context.Background(), menuHC(true, listReplyMsg("soporte", "Soporte")))

	require.NoError(t, err)
	assert.Equal(t, "n-soporte", result.NextNodeID)
}

func TestMenuHandler_PlainTextMatchesIdOrTitle(t *testing.T) {
	handler := NewMenuHandler(&fakeGateway{}, testLogger())

	result, err := handler.Execute(context.Background(), menuHC(true, textMsg("VENTAS")))
	require.NoError(t, err)
	assert.Equal(t, "n-ventas", result.NextNodeID)

	result, err = handler.Execute(context.Background(), menuHC(true, textMsg("  soporte ")))
	require.NoError(t, err)
	assert.Equal(t, "n-soporte", result.NextNodeID)
}

func TestMenuHandler_UnmatchedTextFails(t *testing.T) {
	handler := NewMenuHandler(&fakeGateway{}, testLogger())

	result, err := handler.Execute(context.Background(), menuHC(true, textMsg("otra cosa")))

	assert.Error(t, err)
	// No patch: the awaiting marker must survive so the next reply still
	// lands on this node.
	assert.Nil(t, result.Patch)
}

func TestMenuHandler_NonTextReplyResendsMenu(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewMenuHandler(gateway, testLogger())

	msg := &entities.IncomingMessage{
		ID:   "wamid.in",
		From: "5215550001111",
		Type: entities.MessageImage,
	}
	result, err := handler.Execute(context.Background(), menuHC(true, msg))

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "list", gateway.sent[0].Interactive.Type)
	assert.Equal(t, entities.AwaitMenu, result.Patch.Awaiting().Kind)
}

func TestMenuHandler_TruncatesToProviderCap(t *testing.T) {
	options := ""
	for i := 0; i < 12; i++ {
		if i > 0 {
			options += ","
		}
		options += fmt.Sprintf(`{"id":"o%d","title":"Opción %d"}`, i, i)
	}
	config := `{"body":"Elige","options":[` + options + `]}`

	gateway := &fakeGateway{}
	handler := NewMenuHandler(gateway, testLogger())

	hc := hcFor(testSession("flow-1", "m1"), textMsg("hola"))
	hc.Node = testNode("m1", "flow-1", entities.NodeMenu, config, nil)

	_, err := handler.Execute(context.Background(), hc)

	require.NoError(t, err)
	assert.Len(t, gateway.sent[0].Interactive.Action.Sections[0].Rows, maxMenuOptions)
}
