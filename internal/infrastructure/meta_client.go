package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"waflow/internal/entities"
	"waflow/internal/logging"
)

// MetaClient talks to the Meta Cloud Graph API for one or more accounts.
// Credentials travel per call; the client itself is stateless.
type MetaClient struct {
	baseURL string
	version string
	http    *http.Client
	log     *logging.Logger
}

func NewMetaClient(baseURL, version string, log *logging.Logger) *MetaClient {
	return &MetaClient{
		baseURL: baseURL,
		version: version,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// metaMessage is the wire shape of an outbound message.
type metaMessage struct {
	MessagingProduct string                `json:"messaging_product"`
	RecipientType    string                `json:"recipient_type,omitempty"`
	To               string                `json:"to,omitempty"`
	Type             string                `json:"type,omitempty"`
	Text             *metaText             `json:"text,omitempty"`
	Interactive      *entities.Interactive `json:"interactive,omitempty"`
	Status           string                `json:"status,omitempty"`
	MessageID        string                `json:"message_id,omitempty"`
}

type metaText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type metaResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage posts one outbound payload and returns the provider message id.
func (c *MetaClient) SendMessage(ctx context.Context, phoneNumberID, accessToken string, payload entities.Payload) (string, error) {
	msg := metaMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               payload.To,
		Type:             string(payload.Type),
	}
	switch payload.Type {
	case entities.MessageText:
		msg.Text = &metaText{Body: payload.Text}
	case entities.MessageInteractive:
		msg.Interactive = payload.Interactive
	default:
		return "", fmt.Errorf("unsupported outbound message type %q", payload.Type)
	}

	var resp metaResponse
	if err := c.post(ctx, phoneNumberID, accessToken, msg, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("graph api returned no message id")
	}
	return resp.Messages[0].ID, nil
}

// MarkAsRead acknowledges an inbound message. Failures are returned but
// callers treat them as best effort.
func (c *MetaClient) MarkAsRead(ctx context.Context, phoneNumberID, accessToken, messageID string) error {
	msg := metaMessage{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	return c.post(ctx, phoneNumberID, accessToken, msg, &metaResponse{})
}

func (c *MetaClient) post(ctx context.Context, phoneNumberID, accessToken string, body any, out *metaResponse) error {
	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, phoneNumberID)

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode graph api request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build graph api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read graph api response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode graph api response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 {
		if out.Error != nil {
			return fmt.Errorf("graph api error %d: %s", out.Error.Code, out.Error.Message)
		}
		return fmt.Errorf("graph api status %d", resp.StatusCode)
	}
	return nil
}
