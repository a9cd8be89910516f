package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// noNodesSentinel is stored as the session cursor when the active flow has
// no root node, so the engine does not retry the lookup on every message.
const noNodesSentinel = "no_nodes"

// recoveryMessage is sent when node execution fails mid-flow.
const recoveryMessage = "Lo siento, ocurrió un error. Por favor intenta nuevamente o escribe MENU para volver al inicio."

// Executor drives the node-execution loop for one inbound message. Each
// step runs the current node's handler, persists the returned context patch
// and the new cursor, then either follows the transition or stops to wait
// for the user's next message. The loop is bounded so a mis-wired graph
// cannot spin forever on a single inbound message.
type Executor struct {
	handlers      HandlerSet
	sessions      interfaces.SessionStore
	flows         interfaces.FlowStore
	gateway       interfaces.MessageGateway
	maxIterations int
	log           *logging.Logger
}

func NewExecutor(handlers HandlerSet, sessions interfaces.SessionStore, flows interfaces.FlowStore, gateway interfaces.MessageGateway, maxIterations int, log *logging.Logger) *Executor {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &Executor{
		handlers:      handlers,
		sessions:      sessions,
		flows:         flows,
		gateway:       gateway,
		maxIterations: maxIterations,
		log:           log,
	}
}

// Run executes the session's active flow for one inbound message, starting
// at the persisted cursor or at the flow's root for a fresh entry. State is
// committed after every node so a crash resumes where the user left off.
func (e *Executor) Run(ctx context.Context, hc *HandlerContext) error {
	nodeID := hc.Session.CurrentNodeID
	if nodeID == "" || nodeID == noNodesSentinel {
		roots, err := e.flows.GetRootNodes(ctx, hc.Session.ActiveFlowID)
		if err != nil {
			return fmt.Errorf("load flow roots: %w", err)
		}
		if len(roots) == 0 {
			if nodeID == noNodesSentinel {
				// Already reported once; stay quiet until the flow gets
				// nodes.
				return nil
			}
			e.log.Warn("active flow has no nodes",
				"flow_id", hc.Session.ActiveFlowID, "session_id", hc.Session.ID)
			e.sendRecovery(ctx, hc)
			return e.setCursor(ctx, hc, noNodesSentinel)
		}
		nodeID = roots[0].ID
	}

	for i := 0; i < e.maxIterations; i++ {
		node, err := e.flows.GetNodeByID(ctx, nodeID)
		if err != nil {
			return fmt.Errorf("load node %s: %w", nodeID, err)
		}
		if node == nil {
			e.log.Error("session cursor points at a missing node",
				"node_id", nodeID, "session_id", hc.Session.ID)
			e.sendRecovery(ctx, hc)
			return e.setCursor(ctx, hc, "")
		}

		handler, ok := e.handlers[node.Type]
		if !ok {
			e.log.Error("no handler for node type",
				"node_type", node.Type, "node_id", node.ID)
			e.sendRecovery(ctx, hc)
			return e.setCursor(ctx, hc, "")
		}

		hc.Node = node
		result, err := handler.Execute(ctx, hc)
		if err != nil {
			// The cursor and context are untouched, so the user can simply
			// answer again.
			e.log.Warn("node execution failed",
				"error", err, "node_id", node.ID, "node_type", node.Type, "session_id", hc.Session.ID)
			e.sendRecovery(ctx, hc)
			return nil
		}

		if len(result.Patch) > 0 {
			if err := e.sessions.MergeSessionContext(ctx, hc.Session.ID, result.Patch); err != nil {
				return fmt.Errorf("persist session context: %w", err)
			}
			hc.Session.Context = hc.Session.Context.Merge(result.Patch)
		}

		if result.Terminal {
			// The handler already picked the session's next active flow
			// (or cleared it); only the cursor is ours to clear.
			return e.setCursor(ctx, hc, "")
		}

		if result.NextNodeID == "" {
			// Two-phase node waiting for the user's reply.
			return e.setCursor(ctx, hc, node.ID)
		}

		if err := e.setCursor(ctx, hc, result.NextNodeID); err != nil {
			return err
		}
		nodeID = result.NextNodeID
	}

	// Not an error: the loop stops wherever the cursor was last persisted.
	e.log.Warn("flow stopped at iteration cap",
		"session_id", hc.Session.ID, "flow_id", hc.Session.ActiveFlowID, "cap", e.maxIterations)
	return nil
}

func (e *Executor) setCursor(ctx context.Context, hc *HandlerContext, nodeID string) error {
	if err := e.sessions.UpdateSessionCursor(ctx, hc.Session.ID, nodeID, hc.Session.ActiveFlowID); err != nil {
		return fmt.Errorf("persist session cursor: %w", err)
	}
	hc.Session.CurrentNodeID = nodeID
	return nil
}

func (e *Executor) sendRecovery(ctx context.Context, hc *HandlerContext) {
	payload := entities.TextMessage(hc.User.PhoneNumber, recoveryMessage, hc.Session.ID, hc.Tenant.ID)
	if _, err := e.gateway.Send(ctx, hc.AccountID, payload); err != nil {
		e.log.Error("send recovery message", "error", err, "session_id", hc.Session.ID)
	}
}
