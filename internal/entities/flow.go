package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType classifies how a flow is selected for an inbound message.
type TriggerType string

const (
	TriggerNewUser   TriggerType = "new_user"
	TriggerKnownUser TriggerType = "known_user"
	TriggerKeyword   TriggerType = "keyword"
	TriggerDefault   TriggerType = "default"
)

// Flow is a tenant-owned directed graph of nodes. It is immutable while a
// session executes it; the editor replaces the node set wholesale.
type Flow struct {
	ID                string      `json:"id"`
	TenantID          string      `json:"tenant_id"`
	WhatsAppAccountID string      `json:"whatsapp_account_id,omitempty"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	TriggerType       TriggerType `json:"trigger_type"`
	TriggerKeywords   []string    `json:"trigger_keywords,omitempty"`
	IsActive          bool        `json:"is_active"`
	IsDefault         bool        `json:"is_default"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NodeType enumerates the closed set of node behaviors.
type NodeType string

const (
	NodeText        NodeType = "text"
	NodeMenu        NodeType = "menu"
	NodeButtons     NodeType = "buttons"
	NodeCaptureData NodeType = "capture_data"
	NodeEnd         NodeType = "end"
)

// NodeTypes lists every known node type. Handler registries are checked
// against this set at construction time.
var NodeTypes = []NodeType{NodeText, NodeMenu, NodeButtons, NodeCaptureData, NodeEnd}

// Node is one step in a flow: a type, a type-specific config blob, and a
// transition map from edge key to target node id. A node with a nil parent
// is a root.
type Node struct {
	ID           string            `json:"id"`
	FlowID       string            `json:"flow_id"`
	ParentNodeID string            `json:"parent_node_id,omitempty"`
	Type         NodeType          `json:"node_type"`
	Config       json.RawMessage   `json:"config"`
	Transitions  map[string]string `json:"transitions,omitempty"`
	Position     json.RawMessage   `json:"position,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Transition returns the target node id for an edge key, or "" when the
// node has no such edge.
func (n *Node) Transition(key string) string {
	if n.Transitions == nil {
		return ""
	}
	return n.Transitions[key]
}

// DecodeConfig unmarshals the node's config blob into the typed config
// struct for its node type.
func (n *Node) DecodeConfig(into any) error {
	if len(n.Config) == 0 {
		return fmt.Errorf("node %s has no config", n.ID)
	}
	if err := json.Unmarshal(n.Config, into); err != nil {
		return fmt.Errorf("decode %s node config: %w", n.Type, err)
	}
	return nil
}

// TextConfig configures a text node: substitute variables, send, advance.
type TextConfig struct {
	Text       string `json:"text"`
	NextNodeID string `json:"nextNodeId,omitempty"`
}

// MenuOption is one row of an interactive list.
type MenuOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	NextNodeID  string `json:"nextNodeId,omitempty"`
}

// MenuConfig configures an interactive-list node. WhatsApp caps lists at
// ten rows.
type MenuConfig struct {
	Header     string       `json:"header,omitempty"`
	Body       string       `json:"body"`
	Footer     string       `json:"footer,omitempty"`
	ButtonText string       `json:"buttonText,omitempty"`
	Options    []MenuOption `json:"options"`
}

// ButtonOption is one quick-reply button.
type ButtonOption struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	NextNodeID string `json:"nextNodeId,omitempty"`
}

// ButtonsConfig configures a quick-reply node. WhatsApp caps replies at
// three buttons.
type ButtonsConfig struct {
	Body    string         `json:"body"`
	Footer  string         `json:"footer,omitempty"`
	Buttons []ButtonOption `json:"buttons"`
}

// ValidationRule names the input check applied by a capture-data node.
type ValidationRule string

const (
	ValidateNone  ValidationRule = "none"
	ValidateEmail ValidationRule = "email"
	ValidatePhone ValidationRule = "phone"
)

// CaptureConfig configures a capture-data node.
type CaptureConfig struct {
	Field      string         `json:"field"`
	Prompt     string         `json:"prompt"`
	Validation ValidationRule `json:"validation,omitempty"`
	SaveToUser bool           `json:"saveToUser,omitempty"`
	NextNodeID string         `json:"nextNodeId,omitempty"`
}

// EndAction names what an end node does after its optional final message.
type EndAction string

const (
	EndFinish   EndAction = "finish"
	EndRestart  EndAction = "restart"
	EndGotoFlow EndAction = "goto_flow"
)

// EndConfig configures a terminal node. FlowID is required iff the action
// is goto_flow.
type EndConfig struct {
	Message string    `json:"message,omitempty"`
	Action  EndAction `json:"action"`
	FlowID  string    `json:"flowId,omitempty"`
}
