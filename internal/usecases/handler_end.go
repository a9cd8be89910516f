package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// EndHandler terminates a flow after an optional final message. Every action
// clears the session cursor and halts the loop; they differ in which flow
// the next inbound message lands on: finish re-resolves from scratch,
// restart re-enters the tenant default flow, goto_flow re-enters a named
// flow.
type EndHandler struct {
	gateway interfaces.MessageGateway
	flows   interfaces.FlowStore
	log     *logging.Logger
}

func NewEndHandler(gateway interfaces.MessageGateway, flows interfaces.FlowStore, log *logging.Logger) *EndHandler {
	return &EndHandler{gateway: gateway, flows: flows, log: log}
}

func (h *EndHandler) Type() entities.NodeType {
	return entities.NodeEnd
}

func (h *EndHandler) Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error) {
	var config entities.EndConfig
	if err := hc.Node.DecodeConfig(&config); err != nil {
		return HandlerResult{}, err
	}

	if config.Message != "" {
		text := Substitute(config.Message, hc.Session, hc.User)
		payload := entities.TextMessage(hc.User.PhoneNumber, text, hc.Session.ID, hc.Tenant.ID)
		if _, err := h.gateway.Send(ctx, hc.AccountID, payload); err != nil {
			return HandlerResult{}, fmt.Errorf("send end message node %s: %w", hc.Node.ID, err)
		}
	}

	switch config.Action {
	case entities.EndRestart:
		flow, err := h.tenantDefaultFlow(ctx, hc.Tenant)
		if err != nil {
			return HandlerResult{}, err
		}
		if flow == nil {
			return HandlerResult{}, fmt.Errorf("end node %s: restart without a default flow", hc.Node.ID)
		}
		hc.Session.ActiveFlowID = flow.ID

	case entities.EndGotoFlow:
		if config.FlowID == "" {
			return HandlerResult{}, fmt.Errorf("end node %s: goto_flow without flowId", hc.Node.ID)
		}
		target, err := h.flows.GetFlowByID(ctx, config.FlowID)
		if err != nil {
			return HandlerResult{}, err
		}
		if target == nil || !target.IsActive {
			return HandlerResult{}, fmt.Errorf("end node %s: target flow %s not found or inactive", hc.Node.ID, config.FlowID)
		}
		hc.Session.ActiveFlowID = target.ID

	case entities.EndFinish, "":
		// The next message re-resolves a flow from scratch.
		hc.Session.ActiveFlowID = ""

	default:
		return HandlerResult{}, fmt.Errorf("end node %s: unknown action %q", hc.Node.ID, config.Action)
	}

	// The executor persists the cleared cursor together with whatever
	// active flow was chosen above.
	return HandlerResult{Terminal: true, Patch: entities.ClearAwaitPatch()}, nil
}

func (h *EndHandler) tenantDefaultFlow(ctx context.Context, tenant *entities.Tenant) (*entities.Flow, error) {
	if tenant.DefaultFlowID != "" {
		flow, err := h.flows.GetFlowByID(ctx, tenant.DefaultFlowID)
		if err != nil {
			return nil, err
		}
		if flow != nil && flow.IsActive {
			return flow, nil
		}
	}
	return h.flows.GetDefaultFlow(ctx, tenant.ID)
}
