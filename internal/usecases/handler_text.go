package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// TextHandler sends one templated text message and advances unconditionally
// through the node's default edge.
type TextHandler struct {
	gateway interfaces.MessageGateway
	log     *logging.Logger
}

func NewTextHandler(gateway interfaces.MessageGateway, log *logging.Logger) *TextHandler {
	return &TextHandler{gateway: gateway, log: log}
}

func (h *TextHandler) Type() entities.NodeType {
	return entities.NodeText
}

func (h *TextHandler) Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error) {
	var config entities.TextConfig
	if err := hc.Node.DecodeConfig(&config); err != nil {
		return HandlerResult{}, err
	}

	text := Substitute(config.Text, hc.Session, hc.User)
	payload := entities.TextMessage(hc.User.PhoneNumber, text, hc.Session.ID, hc.Tenant.ID)
	if _, err := h.gateway.Send(ctx, hc.AccountID, payload); err != nil {
		return HandlerResult{}, fmt.Errorf("send text node %s: %w", hc.Node.ID, err)
	}

	// Transition priority: "default" edge, then "next", then the config
	// fallback id.
	next := hc.Node.Transition("default")
	if next == "" {
		next = hc.Node.Transition("next")
	}
	if next == "" {
		next = config.NextNodeID
	}
	return HandlerResult{NextNodeID: next}, nil
}
