package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// maxButtons is the provider cap on quick-reply buttons.
const maxButtons = 3

// ButtonsHandler runs a quick-reply node in two phases, like MenuHandler.
// Unlike menus, button nodes only accept interactive button replies: a plain
// text answer re-sends the buttons.
type ButtonsHandler struct {
	gateway interfaces.MessageGateway
	log     *logging.Logger
}

func NewButtonsHandler(gateway interfaces.MessageGateway, log *logging.Logger) *ButtonsHandler {
	return &ButtonsHandler{gateway: gateway, log: log}
}

func (h *ButtonsHandler) Type() entities.NodeType {
	return entities.NodeButtons
}

func (h *ButtonsHandler) Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error) {
	var config entities.ButtonsConfig
	if err := hc.Node.DecodeConfig(&config); err != nil {
		return HandlerResult{}, err
	}

	if hc.Session.Context.Awaiting().Kind != entities.AwaitButtons {
		return h.sendButtons(ctx, hc, &config)
	}

	clickedID, ok := hc.Message.ButtonReplyID()
	if !ok {
		return h.sendButtons(ctx, hc, &config)
	}

	button := findButton(config.Buttons, clickedID)
	if button == nil {
		return HandlerResult{}, fmt.Errorf("buttons node %s: invalid button %q", hc.Node.ID, clickedID)
	}

	next := button.NextNodeID
	if next == "" {
		next = hc.Node.Transition(button.ID)
	}
	if next == "" {
		next = hc.Node.Transition("default")
	}
	return HandlerResult{NextNodeID: next, Patch: entities.ClearAwaitPatch()}, nil
}

func (h *ButtonsHandler) sendButtons(ctx context.Context, hc *HandlerContext, config *entities.ButtonsConfig) (HandlerResult, error) {
	buttons := config.Buttons
	if len(buttons) > maxButtons {
		h.log.Warn("buttons node truncated to provider cap", "node_id", hc.Node.ID, "buttons", len(buttons))
		buttons = buttons[:maxButtons]
	}

	replies := make([]entities.InteractiveButton, len(buttons))
	for i, b := range buttons {
		replies[i] = entities.InteractiveButton{
			Type:  "reply",
			Reply: entities.ReplyOption{ID: b.ID, Title: b.Title},
		}
	}

	interactive := &entities.Interactive{
		Type:   "button",
		Body:   entities.InteractiveBody{Text: Substitute(config.Body, hc.Session, hc.User)},
		Action: entities.InteractiveAction{Buttons: replies},
	}
	if config.Footer != "" {
		interactive.Footer = &entities.InteractiveFooter{Text: config.Footer}
	}

	payload := entities.Payload{
		To:             hc.User.PhoneNumber,
		Type:           entities.MessageInteractive,
		Interactive:    interactive,
		ConversationID: hc.Session.ID,
		TenantID:       hc.Tenant.ID,
	}
	if _, err := h.gateway.Send(ctx, hc.AccountID, payload); err != nil {
		return HandlerResult{}, fmt.Errorf("send buttons node %s: %w", hc.Node.ID, err)
	}

	return HandlerResult{Patch: entities.AwaitPatch(entities.AwaitButtons, "")}, nil
}

func findButton(buttons []entities.ButtonOption, id string) *entities.ButtonOption {
	for i := range buttons {
		if buttons[i].ID == id {
			return &buttons[i]
		}
	}
	return nil
}
