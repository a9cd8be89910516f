package usecases

import (
	"context"
	"fmt"
	"time"

	"waflow/internal/entities"
	"waflow/internal/logging"
)

// In-memory fakes for the engine's ports.

type fakeGateway struct {
	sent    []entities.Payload
	marked  []string
	sendErr error
}

func (g *fakeGateway) Send(_ context.Context, _ string, payload entities.Payload) (string, error) {
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.sent = append(g.sent, payload)
	return fmt.Sprintf("wamid.%d", len(g.sent)), nil
}

func (g *fakeGateway) MarkAsRead(_ context.Context, _, messageID string) error {
	g.marked = append(g.marked, messageID)
	return nil
}

func (g *fakeGateway) lastSent() entities.Payload {
	return g.sent[len(g.sent)-1]
}

type fakeFlowStore struct {
	flows        map[string]*entities.Flow
	nodes        map[string]*entities.Node
	roots        map[string][]*entities.Node
	keywordFlows map[string]*entities.Flow
	triggerFlows map[entities.TriggerType]*entities.Flow
	defaultFlow  *entities.Flow
}

func newFakeFlowStore() *fakeFlowStore {
	return &fakeFlowStore{
		flows:        map[string]*entities.Flow{},
		nodes:        map[string]*entities.Node{},
		roots:        map[string][]*entities.Node{},
		keywordFlows: map[string]*entities.Flow{},
		triggerFlows: map[entities.TriggerType]*entities.Flow{},
	}
}

func (f *fakeFlowStore) addFlow(flow *entities.Flow) *entities.Flow {
	f.flows[flow.ID] = flow
	return flow
}

func (f *fakeFlowStore) addNode(n *entities.Node, root bool) *entities.Node {
	f.nodes[n.ID] = n
	if root {
		f.roots[n.FlowID] = append(f.roots[n.FlowID], n)
	}
	return n
}

func (f *fakeFlowStore) GetFlowByID(_ context.Context, id string) (*entities.Flow, error) {
	return f.flows[id], nil
}

func (f *fakeFlowStore) GetDefaultFlow(_ context.Context, _ string) (*entities.Flow, error) {
	return f.defaultFlow, nil
}

func (f *fakeFlowStore) GetFlowByTrigger(_ context.Context, _ string, trigger entities.TriggerType) (*entities.Flow, error) {
	return f.triggerFlows[trigger], nil
}

func (f *fakeFlowStore) GetFlowByKeyword(_ context.Context, _, keyword string) (*entities.Flow, error) {
	return f.keywordFlows[keyword], nil
}

func (f *fakeFlowStore) GetNodeByID(_ context.Context, id string) (*entities.Node, error) {
	return f.nodes[id], nil
}

func (f *fakeFlowStore) GetRootNodes(_ context.Context, flowID string) ([]*entities.Node, error) {
	return f.roots[flowID], nil
}

type cursorWrite struct {
	nodeID string
	flowID string
}

type fakeSessionStore struct {
	active       map[string]*entities.Session
	created      []*entities.Session
	cursorWrites []cursorWrite
	contexts     map[string]entities.Context
	extended     map[string]time.Time
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		active:   map[string]*entities.Session{},
		contexts: map[string]entities.Context{},
		extended: map[string]time.Time{},
	}
}

func (s *fakeSessionStore) GetActiveSession(_ context.Context, userID string) (*entities.Session, error) {
	return s.active[userID], nil
}

func (s *fakeSessionStore) CreateSession(_ context.Context, sess *entities.Session) error {
	s.created = append(s.created, sess)
	s.active[sess.UserID] = sess
	return nil
}

func (s *fakeSessionStore) ExtendSession(_ context.Context, id string, expiresAt time.Time) error {
	s.extended[id] = expiresAt
	return nil
}

func (s *fakeSessionStore) UpdateSessionCursor(_ context.Context, id, nodeID, flowID string) error {
	s.cursorWrites = append(s.cursorWrites, cursorWrite{nodeID: nodeID, flowID: flowID})
	return nil
}

func (s *fakeSessionStore) MergeSessionContext(_ context.Context, id string, patch entities.Context) error {
	s.contexts[id] = s.contexts[id].Merge(patch)
	return nil
}

func (s *fakeSessionStore) lastCursor() cursorWrite {
	return s.cursorWrites[len(s.cursorWrites)-1]
}

type fakeUserStore struct {
	users          map[string]*entities.User
	createNext     bool
	profileUpdates map[string]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:          map[string]*entities.User{},
		profileUpdates: map[string]string{},
	}
}

func (u *fakeUserStore) GetOrCreateUser(_ context.Context, tenantID, phoneNumber, displayName string) (*entities.User, bool, error) {
	if existing, ok := u.users[phoneNumber]; ok {
		return existing, false, nil
	}
	user := &entities.User{
		ID:          "user-" + phoneNumber,
		TenantID:    tenantID,
		PhoneNumber: phoneNumber,
		Name:        displayName,
	}
	u.users[phoneNumber] = user
	return user, true, nil
}

func (u *fakeUserStore) UpdateUserProfile(_ context.Context, userID, field, value string) error {
	u.profileUpdates[field] = value
	return nil
}

type fakeMessageLog struct {
	inbound  []*entities.IncomingMessage
	outbound []entities.Payload
}

func (m *fakeMessageLog) SaveInbound(_ context.Context, _, _ string, msg *entities.IncomingMessage) error {
	m.inbound = append(m.inbound, msg)
	return nil
}

func (m *fakeMessageLog) SaveOutbound(_ context.Context, _, _, _ string, payload entities.Payload) error {
	m.outbound = append(m.outbound, payload)
	return nil
}

type fakeLocker struct {
	locked []string
}

func (l *fakeLocker) Lock(key string) func() {
	l.locked = append(l.locked, key)
	return func() {}
}

// Fixture helpers shared across the engine tests.

func testLogger() *logging.Logger {
	return logging.Discard()
}

func testTenant() *entities.Tenant {
	return &entities.Tenant{
		ID:           "tenant-1",
		Name:         "Acme",
		Slug:         "acme",
		ResetKeyword: "MENU",
	}
}

func testUser() *entities.User {
	return &entities.User{
		ID:          "user-1",
		TenantID:    "tenant-1",
		PhoneNumber: "5215550001111",
		Name:        "Laura",
	}
}

func testSession(flowID, nodeID string) *entities.Session {
	return &entities.Session{
		ID:            "sess-1",
		TenantID:      "tenant-1",
		UserID:        "user-1",
		ActiveFlowID:  flowID,
		CurrentNodeID: nodeID,
		Context:       entities.Context{},
		Status:        "active",
		ExpiresAt:     time.Now().Add(30 * time.Minute),
	}
}

func textMsg(body string) *entities.IncomingMessage {
	return &entities.IncomingMessage{
		ID:   "wamid.in",
		From: "5215550001111",
		Type: entities.MessageText,
		Text: &entities.TextPayload{Body: body},
	}
}

func listReplyMsg(id, title string) *entities.IncomingMessage {
	return &entities.IncomingMessage{
		ID:   "wamid.in",
		From: "5215550001111",
		Type: entities.MessageInteractive,
		Interactive: &entities.InteractivePayload{
			Type:      "list_reply",
			ListReply: &entities.ReplyOption{ID: id, Title: title},
		},
	}
}

func buttonReplyMsg(id, title string) *entities.IncomingMessage {
	return &entities.IncomingMessage{
		ID:   "wamid.in",
		From: "5215550001111",
		Type: entities.MessageInteractive,
		Interactive: &entities.InteractivePayload{
			Type:        "button_reply",
			ButtonReply: &entities.ReplyOption{ID: id, Title: title},
		},
	}
}

func testNode(id, flowID string, nodeType entities.NodeType, config string, transitions map[string]string) *entities.Node {
	return &entities.Node{
		ID:          id,
		FlowID:      flowID,
		Type:        nodeType,
		Config:      []byte(config),
		Transitions: transitions,
	}
}
