package entities

// MessageType tags the payload variant of a message.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageInteractive MessageType = "interactive"
	MessageImage       MessageType = "image"
	MessageVideo       MessageType = "video"
	MessageDocument    MessageType = "document"
	MessageAudio       MessageType = "audio"
)

// IncomingMessage is one normalized inbound message from the webhook
// transport: a tagged union over text, interactive replies and media.
type IncomingMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Type        MessageType         `json:"type"`
	Text        *TextPayload        `json:"text,omitempty"`
	Interactive *InteractivePayload `json:"interactive,omitempty"`
	Media       *MediaPayload       `json:"image,omitempty"`
}

// TextPayload is the body of a plain text message.
type TextPayload struct {
	Body string `json:"body"`
}

// InteractivePayload carries a list or button reply.
type InteractivePayload struct {
	Type        string       `json:"type"`
	ListReply   *ReplyOption `json:"list_reply,omitempty"`
	ButtonReply *ReplyOption `json:"button_reply,omitempty"`
}

// ReplyOption identifies the option the user picked.
type ReplyOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MediaPayload describes an inbound media attachment. The engine stores it
// for audit but never interprets it.
type MediaPayload struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Body extracts the human-readable text of the message: the text body for
// text messages, the selected option title for interactive replies.
func (m *IncomingMessage) Body() string {
	switch {
	case m.Type == MessageText && m.Text != nil:
		return m.Text.Body
	case m.Type == MessageInteractive && m.Interactive != nil:
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.Title
		}
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.Title
		}
	}
	return ""
}

// ListReplyID returns the selected list option id, if this message is a
// list reply.
func (m *IncomingMessage) ListReplyID() (string, bool) {
	if m.Type == MessageInteractive && m.Interactive != nil && m.Interactive.ListReply != nil {
		return m.Interactive.ListReply.ID, true
	}
	return "", false
}

// ButtonReplyID returns the clicked button id, if this message is a button
// reply.
func (m *IncomingMessage) ButtonReplyID() (string, bool) {
	if m.Type == MessageInteractive && m.Interactive != nil && m.Interactive.ButtonReply != nil {
		return m.Interactive.ButtonReply.ID, true
	}
	return "", false
}

// Interactive is the provider-shaped interactive content for outbound list
// and button messages. Handlers build it and the gateway sends it as-is.
type Interactive struct {
	Type   string             `json:"type"`
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   InteractiveBody    `json:"body"`
	Footer *InteractiveFooter `json:"footer,omitempty"`
	Action InteractiveAction  `json:"action"`
}

type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type InteractiveBody struct {
	Text string `json:"text"`
}

type InteractiveFooter struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Button   string              `json:"button,omitempty"`
	Buttons  []InteractiveButton `json:"buttons,omitempty"`
	Sections []ListSection       `json:"sections,omitempty"`
}

type InteractiveButton struct {
	Type  string      `json:"type"`
	Reply ReplyOption `json:"reply"`
}

type ListSection struct {
	Title string       `json:"title,omitempty"`
	Rows  []MenuOption `json:"rows"`
}

// Payload is one outbound message handed to the gateway. ConversationID and
// TenantID are carried for the outbound audit log only.
type Payload struct {
	To             string
	Type           MessageType
	Text           string
	Interactive    *Interactive
	ConversationID string
	TenantID       string
}

// TextMessage builds a plain outbound text payload bound to a conversation.
func TextMessage(to, text, conversationID, tenantID string) Payload {
	return Payload{
		To:             to,
		Type:           MessageText,
		Text:           text,
		ConversationID: conversationID,
		TenantID:       tenantID,
	}
}

// StoredMessage is one audited message, inbound or outbound.
type StoredMessage struct {
	ID                string      `json:"id"`
	ConversationID    string      `json:"conversation_id"`
	TenantID          string      `json:"tenant_id"`
	WhatsAppMessageID string      `json:"whatsapp_message_id,omitempty"`
	Direction         string      `json:"direction"`
	Type              MessageType `json:"type"`
	Content           []byte      `json:"-"`
	ContentText       string      `json:"content_text,omitempty"`
	SentAt            string      `json:"sent_at,omitempty"`
}
