package usecases

import (
	"context"
	"strings"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// defaultResetKeyword applies when a tenant has no reset keyword configured.
const defaultResetKeyword = "MENU"

// FlowResolver picks which flow handles an inbound message. Resolution
// order: the tenant reset keyword, the session's active flow, keyword
// triggers, the new-user or known-user trigger, then the tenant default.
type FlowResolver struct {
	flows interfaces.FlowStore
	log   *logging.Logger
}

func NewFlowResolver(flows interfaces.FlowStore, log *logging.Logger) *FlowResolver {
	return &FlowResolver{flows: flows, log: log}
}

// Resolve returns the flow to execute and whether the reset keyword fired.
// On reset the caller must clear the session cursor before executing. A nil
// flow with nil error means the tenant has nothing configured for this
// message.
func (r *FlowResolver) Resolve(ctx context.Context, tenant *entities.Tenant, session *entities.Session, msg *entities.IncomingMessage, newUser bool) (*entities.Flow, bool, error) {
	// Only typed text counts for the reset keyword and keyword triggers.
	// Interactive replies surface the selected option's title as Body, and
	// an option titled "Menu" must not hijack the selection.
	var text string
	if msg.Type == entities.MessageText {
		text = strings.TrimSpace(msg.Body())
	}

	keyword := tenant.ResetKeyword
	if keyword == "" {
		keyword = defaultResetKeyword
	}
	if text != "" && strings.EqualFold(text, keyword) {
		flow, err := r.defaultFlow(ctx, tenant)
		return flow, true, err
	}

	if session.ActiveFlowID != "" {
		flow, err := r.flows.GetFlowByID(ctx, session.ActiveFlowID)
		if err != nil {
			return nil, false, err
		}
		if flow != nil && flow.IsActive {
			return flow, false, nil
		}
		// The active flow was deleted or deactivated mid-conversation;
		// resolve from scratch.
		r.log.Warn("active flow gone, re-resolving",
			"flow_id", session.ActiveFlowID, "session_id", session.ID)
		session.ActiveFlowID = ""
		session.CurrentNodeID = ""
	}

	if text != "" {
		flow, err := r.flows.GetFlowByKeyword(ctx, tenant.ID, text)
		if err != nil {
			return nil, false, err
		}
		if flow != nil {
			return flow, false, nil
		}
	}

	if newUser {
		flow, err := r.triggerFlow(ctx, tenant, tenant.NewUserFlowID, entities.TriggerNewUser)
		if err != nil || flow != nil {
			return flow, false, err
		}
	} else {
		flow, err := r.triggerFlow(ctx, tenant, tenant.KnownUserFlowID, entities.TriggerKnownUser)
		if err != nil || flow != nil {
			return flow, false, err
		}
	}

	flow, err := r.defaultFlow(ctx, tenant)
	return flow, false, err
}

// triggerFlow resolves a trigger, preferring the tenant's explicit flow
// pointer over trigger-type lookup.
func (r *FlowResolver) triggerFlow(ctx context.Context, tenant *entities.Tenant, pinnedID string, trigger entities.TriggerType) (*entities.Flow, error) {
	if pinnedID != "" {
		flow, err := r.flows.GetFlowByID(ctx, pinnedID)
		if err != nil {
			return nil, err
		}
		if flow != nil && flow.IsActive {
			return flow, nil
		}
	}
	return r.flows.GetFlowByTrigger(ctx, tenant.ID, trigger)
}

func (r *FlowResolver) defaultFlow(ctx context.Context, tenant *entities.Tenant) (*entities.Flow, error) {
	if tenant.DefaultFlowID != "" {
		flow, err := r.flows.GetFlowByID(ctx, tenant.DefaultFlowID)
		if err != nil {
			return nil, err
		}
		if flow != nil && flow.IsActive {
			return flow, nil
		}
	}
	return r.flows.GetDefaultFlow(ctx, tenant.ID)
}
