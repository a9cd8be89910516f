package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waflow/internal/entities"
)

func TestTextHandler_SendsSubstitutedText(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewTextHandler(gateway, testLogger())

	hc := hcFor(testSession("flow-1", "n1"), textMsg("hola"))
	hc.Node = testNode("n1", "flow-1", entities.NodeText, `{"text":"Hola {nombre}"}`, map[string]string{"default": "n2"})

	result, err := handler.Execute(context.Background(), hc)

	require.NoError(t, err)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "Hola Laura", gateway.sent[0].Text)
	assert.Equal(t, "5215550001111", gateway.sent[0].To)
	assert.Equal(t, "n2", result.NextNodeID)
}

func TestTextHandler_TransitionPriority(t *testing.T) {
	gateway := &fakeGateway{}
	handler := NewTextHandler(gateway, testLogger())

	// "default" beats "next" beats the config fallback.
	hc := hcFor(testSession("flow-1", "n1"), textMsg("hola"))
	hc.Node = testNode("n1", "flow-1", entities.NodeText,
		`{"text":"x","nextNodeId":"from-config"}`,
		map[string]string{"default": "from-default", "next": "from-next"})
	result, err := handler.Execute(context.Background(), hc)
	require.NoError(t, err)
	assert.Equal(t, "from-default", result.NextNodeID)

	hc.Node = testNode("n1", "flow-1", entities.NodeText,
		`{"text":"x","nextNodeId":"from-config"}`,
		map[string]string{"next": "from-next"})
	result, err = handler.Execute(context.Background(), hc)
	require.NoError(t, err)
	assert.Equal(t, "from-next", result.NextNodeID)

	hc.Node = testNode("n1", "flow-1", entities.NodeText, `{"text":"x","nextNodeId":"from-config"}`, nil)
	result, err = handler.Execute(context.Background(), hc)
	require.NoError(t, err)
	assert.Equal(t, "from-config", result.NextNodeID)
}

func TestTextHandler_NoNextWaits(t *testing.T) {
	handler := NewTextHandler(&fakeGateway{}, testLogger())

	hc := hcFor(testSession("flow-1", "n1"), textMsg("hola"))
	hc.Node = testNode("n1", "flow-1", entities.NodeText, `{"text":"fin"}`, nil)

	result, err := handler.Execute(context.Background(), hc)
	require.NoError(t, err)
	assert.Empty(t, result.NextNodeID)
	assert.False(t, result.Terminal)
}

func TestTextHandler_BadConfig(t *testing.T) {
	handler := NewTextHandler(&fakeGateway{}, testLogger())

	hc := hcFor(testSession("flow-1", "n1"), textMsg("hola"))
	hc.Node = testNode("n1", "flow-1", entities.NodeText, `{`, nil)

	_, err := handler.Execute(context.Background(), hc)
	assert.Error(t, err)
}
