package usecases

import (
	"context"
	"fmt"
	"strings"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// maxMenuOptions is the provider cap on interactive list rows.
const maxMenuOptions = 10

// MenuHandler runs an interactive-list node in two phases: phase one
// renders and sends the list and marks the session as awaiting a menu
// reply; phase two resolves the selected option on the next inbound
// message and transitions.
type MenuHandler struct {
	gateway interfaces.MessageGateway
	log     *logging.Logger
}

func NewMenuHandler(gateway interfaces.MessageGateway, log *logging.Logger) *MenuHandler {
	return &MenuHandler{gateway: gateway, log: log}
}

func (h *MenuHandler) Type() entities.NodeType {
	return entities.NodeMenu
}

func (h *MenuHandler) Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error) {
	var config entities.MenuConfig
	if err := hc.Node.DecodeConfig(&config); err != nil {
		return HandlerResult{}, err
	}

	if hc.Session.Context.Awaiting().Kind != entities.AwaitMenu {
		return h.sendMenu(ctx, hc, &config)
	}

	selectedID, ok := hc.Message.ListReplyID()
	if !ok {
		// Menu accepts a plain text reply matching an option id or title.
		if hc.Message.Type == entities.MessageText {
			selectedID = h.matchTextReply(&config, hc.Message.Body())
			if selectedID == "" {
				return HandlerResult{}, fmt.Errorf("menu node %s: no option matches reply %q", hc.Node.ID, hc.Message.Body())
			}
			ok = true
		}
	}
	if !ok {
		// Not a usable reply (media, unrelated interactive type): repeat
		// the prompt and keep waiting.
		return h.sendMenu(ctx, hc, &config)
	}

	option := findMenuOption(config.Options, selectedID)
	if option == nil {
		return HandlerResult{}, fmt.Errorf("menu node %s: invalid option %q", hc.Node.ID, selectedID)
	}

	// Transition priority: the option's own target, then the node edge
	// keyed by option id, then the default edge.
	next := option.NextNodeID
	if next == "" {
		next = hc.Node.Transition(option.ID)
	}
	if next == "" {
		next = hc.Node.Transition("default")
	}
	return HandlerResult{NextNodeID: next, Patch: entities.ClearAwaitPatch()}, nil
}

func (h *MenuHandler) sendMenu(ctx context.Context, hc *HandlerContext, config *entities.MenuConfig) (HandlerResult, error) {
	options := config.Options
	if len(options) > maxMenuOptions {
		h.log.Warn("menu node truncated to provider cap", "node_id", hc.Node.ID, "options", len(options))
		options = options[:maxMenuOptions]
	}

	rows := make([]entities.MenuOption, len(options))
	for i, opt := range options {
		rows[i] = entities.MenuOption{ID: opt.ID, Title: opt.Title, Description: opt.Description}
	}

	buttonText := config.ButtonText
	if buttonText == "" {
		buttonText = "Ver opciones"
	}

	interactive := &entities.Interactive{
		Type: "list",
		Body: entities.InteractiveBody{Text: Substitute(config.Body, hc.Session, hc.User)},
		Action: entities.InteractiveAction{
			Button:   buttonText,
			Sections: []entities.ListSection{{Rows: rows}},
		},
	}
	if config.Header != "" {
		interactive.Header = &entities.InteractiveHeader{Type: "text", Text: config.Header}
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
		return HandlerResult{}, fmt.Errorf("send menu node %s: %w", hc.Node.ID, err)
	}

	// Wait on this node for the reply.
	return HandlerResult{Patch: entities.AwaitPatch(entities.AwaitMenu, "")}, nil
}

func (h *MenuHandler) matchTextReply(config *entities.MenuConfig, body string) string {
	body = strings.TrimSpace(body)
	for _, opt := range config.Options {
		if strings.EqualFold(opt.ID, body) || strings.EqualFold(opt.Title, body) {
			return opt.ID
		}
	}
	return ""
}

func findMenuOption(options []entities.MenuOption, id string) *entities.MenuOption {
	for i := range options {
		if options[i].ID == id {
			return &options[i]
		}
	}
	return nil
}
