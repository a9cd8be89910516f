// Package usecases holds the flow execution engine: session resolution,
// flow selection, the bounded node-execution loop, and one handler per node
// type. Everything reaches persistence and the provider through the ports
// in internal/interfaces so each piece is testable in isolation.
package usecases

import (
	"context"
	"fmt"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// HandlerContext bundles everything a node handler may touch for one
// inbound message.
type HandlerContext struct {
	Tenant    *entities.Tenant
	AccountID string
	User      *entities.User
	Session   *entities.Session
	Node      *entities.Node
	Message   *entities.IncomingMessage
}

// HandlerResult is the sole channel from a handler back to the executor.
// An empty NextNodeID means the flow waits on the current node, unless
// Terminal is set, in which case the executor clears the session cursor and
// stops. Patch is a context delta; the executor merges and persists it,
// handlers never write the session context directly.
type HandlerResult struct {
	NextNodeID string
	Patch      entities.Context
	Terminal   bool
}

// Handler executes one node type. A returned error is the failure path:
// the executor sends a recovery message and aborts the loop without
// applying the result.
type Handler interface {
	Type() entities.NodeType
	Execute(ctx context.Context, hc *HandlerContext) (HandlerResult, error)
}

// HandlerSet maps node types to their handlers.
type HandlerSet map[entities.NodeType]Handler

// NewHandlerSet wires the closed set of handlers with their collaborators
// and panics if any node type is left uncovered, so a missing registration
// fails at boot rather than mid-conversation.
func NewHandlerSet(gateway interfaces.MessageGateway, users interfaces.UserStore, flows interfaces.FlowStore, log *logging.Logger) HandlerSet {
	set := HandlerSet{}
	for _, h := range []Handler{
		NewTextHandler(gateway, log),
		NewMenuHandler(gateway, log),
		NewButtonsHandler(gateway, log),
		NewCaptureHandler(gateway, users, log),
		NewEndHandler(gateway, flows, log),
	} {
		set[h.Type()] = h
	}
	for _, nodeType := range entities.NodeTypes {
		if _, ok := set[nodeType]; !ok {
			panic(fmt.Sprintf("no handler registered for node type %q", nodeType))
		}
	}
	return set
}
