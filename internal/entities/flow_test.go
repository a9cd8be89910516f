package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTransition(t *testing.T) {
	n := Node{Transitions: map[string]string{"default": "n2", "si": "n3"}}

	assert.Equal(t, "n2", n.Transition("default"))
	assert.Equal(t, "n3", n.Transition("si"))
	assert.Equal(t, "", n.Transition("no"))

	var bare Node
	assert.Equal(t, "", bare.Transition("default"))
}

func TestNodeDecodeConfig(t *testing.T) {
	n := Node{
		ID:     "n1",
		Type:   NodeCaptureData,
		Config: []byte(`{"field":"email","prompt":"¿Correo?","validation":"email","saveToUser":true}`),
	}

	var config CaptureConfig
	require.NoError(t, n.DecodeConfig(&config))
	assert.Equal(t, "email", config.Field)
	assert.Equal(t, ValidateEmail, config.Validation)
	assert.True(t, config.SaveToUser)

	empty := Node{ID: "n2", Type: NodeText}
	var tc TextConfig
	assert.Error(t, empty.DecodeConfig(&tc))
}

func TestIncomingMessageBody(t *testing.T) {
	text := IncomingMessage{Type: MessageText, Text: &TextPayload{Body: "hola"}}
	assert.Equal(t, "hola", text.Body())

	list := IncomingMessage{
		Type:        MessageInteractive,
		Interactive: &InteractivePayload{ListReply: &ReplyOption{ID: "a", Title: "Opción A"}},
	}
	assert.Equal(t, "Opción A", list.Body())
	id, ok := list.ListReplyID()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	_, ok = list.ButtonReplyID()
	assert.False(t, ok)

	media := IncomingMessage{Type: MessageImage, Media: &MediaPayload{ID: "m1"}}
	assert.Equal(t, "", media.Body())
}

func TestUserDisplayName(t *testing.T) {
	named := User{Name: "Laura"}
	assert.True(t, named.Known())
	assert.Equal(t, "Laura", named.DisplayName())

	var anon User
	assert.False(t, anon.Known())
	assert.Equal(t, "amigo", anon.DisplayName())
}

func TestTenantSessionTimeout(t *testing.T) {
	tenant := Tenant{SessionTimeoutMinutes: 15}
	assert.Equal(t, "15m0s", tenant.SessionTimeout(30).String())

	tenant.SessionTimeoutMinutes = 0
	assert.Equal(t, "30m0s", tenant.SessionTimeout(30).String())
}
