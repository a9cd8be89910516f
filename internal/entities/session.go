package entities

import (
	"encoding/json"
	"time"
)

// Context is the per-session key-value store used for variable substitution
// and two-phase handler state. Handlers never mutate it in place; they
// return a patch and the executor merges it.
type Context map[string]any

// Merge returns a new Context with the patch applied over c. Keys in the
// patch overwrite, matching the jsonb || operator used to persist patches.
// Neither input is modified.
func (c Context) Merge(patch Context) Context {
	merged := make(Context, len(c)+len(patch))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// String returns the context value under key as a string, or "" when the
// key is absent or not a string.
func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// AwaitKind is the sub-state of a two-phase node between sending its prompt
// and receiving the reply.
type AwaitKind string

const (
	AwaitNone    AwaitKind = ""
	AwaitMenu    AwaitKind = "menu"
	AwaitButtons AwaitKind = "buttons"
	AwaitField   AwaitKind = "field"
)

// Awaiting marks that the session's current node sent its prompt and is
// waiting for the next inbound message. Field is set for capture-data nodes.
type Awaiting struct {
	Kind  AwaitKind `json:"kind"`
	Field string    `json:"field,omitempty"`
}

// Zero reports whether nothing is awaited.
func (a Awaiting) Zero() bool {
	return a.Kind == AwaitNone
}

// awaitingKey is the reserved context key holding the typed awaiting marker.
const awaitingKey = "__awaiting"

// Awaiting returns the session's pending two-phase marker, or the zero
// marker when none is set.
func (c Context) Awaiting() Awaiting {
	raw, ok := c[awaitingKey]
	if !ok || raw == nil {
		return Awaiting{}
	}
	// The context round-trips through jsonb, so the marker may come back as
	// a generic map rather than the struct a handler stored.
	switch v := raw.(type) {
	case Awaiting:
		return v
	case map[string]any:
		a := Awaiting{}
		if kind, ok := v["kind"].(string); ok {
			a.Kind = AwaitKind(kind)
		}
		if field, ok := v["field"].(string); ok {
			a.Field = field
		}
		return a
	default:
		return Awaiting{}
	}
}

// AwaitPatch builds a context patch that sets the awaiting marker.
func AwaitPatch(kind AwaitKind, field string) Context {
	return Context{awaitingKey: Awaiting{Kind: kind, Field: field}}
}

// ClearAwaitPatch builds a context patch that clears the awaiting marker.
func ClearAwaitPatch() Context {
	return Context{awaitingKey: nil}
}

// Session is the per-user execution state of a flow: the active flow, the
// current node cursor ("" means awaiting start or terminated), the context,
// and an expiry window extended on every inbound message.
type Session struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	WhatsAppAccountID string    `json:"whatsapp_account_id"`
	UserID            string    `json:"user_id"`
	ActiveFlowID      string    `json:"active_flow_id,omitempty"`
	CurrentNodeID     string    `json:"current_node_id,omitempty"`
	Context           Context   `json:"context"`
	Status            string    `json:"status"`
	ExpiresAt         time.Time `json:"session_expires_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Expired reports whether the session's window has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// MarshalContext encodes a context for jsonb persistence.
func MarshalContext(c Context) ([]byte, error) {
	if c == nil {
		c = Context{}
	}
	return json.Marshal(c)
}
