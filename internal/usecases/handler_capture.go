package usecases

import (
	"context"
	"fmt"
	"strings"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// invalidFormatPrefix precedes the re-prompt when a captured value fails
// validation.
const invalidFormatPrefix = "El formato no es válido. "

// CaptureHandler runs a capture-data node in two phases: phase one sends the
// prompt and marks the session as awaiting input for the configured field;
// phase two validates the reply, stores it in the session context and
// optionally on the user profile, then advances.
type CaptureHandler struct {
	gateway interfaces.MessageGateway
	users   interfaces.UserStore
	log     *logging.Logger
}

func NewCaptureHandler(gateway interfaces.MessageGateway, users interfaces.UserStore, log *logging.Logger) *CaptureHandler {
	return &CaptureHandler{gateway: gateway, users: users, log: log}
}

func (h *CaptureHandler) Type() entities.NodeType {
	return entities.NodeCaptureData
}

func (h *CaptureHandler) Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error) {
	var config entities.CaptureConfig
	if err := hc.Node.DecodeConfig(&config); err != nil {
		return HandlerResult{}, err
	}
	if config.Field == "" {
		return HandlerResult{}, fmt.Errorf("capture node %s has no field", hc.Node.ID)
	}

	awaiting := hc.Session.Context.Awaiting()
	if awaiting.Kind != entities.AwaitField || awaiting.Field != config.Field {
		return h.sendPrompt(ctx, hc, &config, config.Prompt)
	}

	input := strings.TrimSpace(hc.Message.Body())
	if input == "" || !ValidCaptureInput(input, config.Validation) {
		// Re-prompt; the awaiting marker stays so the next reply lands
		// back here.
		return h.sendPrompt(ctx, hc, &config, invalidFormatPrefix+config.Prompt)
	}

	if config.SaveToUser {
		if err := h.users.UpdateUserProfile(ctx, hc.User.ID, config.Field, input); err != nil {
			// The session context still captures the value; losing the
			// profile copy is not worth aborting the flow.
			h.log.Error("persist captured field to user profile", "error", err, "user_id", hc.User.ID, "field", config.Field)
		}
	}

	patch := entities.ClearAwaitPatch()
	patch[config.Field] = input

	next := hc.Node.Transition("default")
	if next == "" {
		next = hc.Node.Transition("next")
	}
	if next == "" {
		next = config.NextNodeID
	}
	return HandlerResult{NextNodeID: next, Patch: patch}, nil
}

func (h *CaptureHandler) sendPrompt(ctx context.Context, hc *HandlerContext, config *entities.CaptureConfig, prompt string) (HandlerResult, error) {
	text := Substitute(prompt, hc.Session, hc.User)
	payload := entities.TextMessage(hc.User.PhoneNumber, text, hc.Session.ID, hc.Tenant.ID)
	if _, err := h.gateway.Send(ctx, hc.AccountID, payload); err != nil {
		return HandlerResult{}, fmt.Errorf("send capture prompt node %s: %w", hc.Node.ID, err)
	}
	return HandlerResult{Patch: entities.AwaitPatch(entities.AwaitField, config.Field)}, nil
}
