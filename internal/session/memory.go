package session

import (
	"context"
	"sync"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

// Memory is an in-process appliance session.
//
// Connect outcomes are scripted with ScriptConnect; once the script is
// exhausted every Connect succeeds. Requests are recorded and answered by
// the Responder (code 0 when unset). With Echo enabled, value writes are
// reflected back as notifications, which makes a description dump behave
// like a live appliance.
type Memory struct {
	mu           sync.Mutex
	connected    bool
	script       []error
	connectCalls int
	closeCalls   int
	sent         []appliance.Message
	echo         bool

	responder func(appliance.Message) (appliance.Message, error)
	onMessage func(appliance.Message)
	onState   func(appliance.ConnectionState)
}

// Ensure Memory implements appliance.Session.
var _ appliance.Session = (*Memory)(nil)

// NewMemory creates a disconnected in-memory session.
func NewMemory() *Memory {
	return &Memory{}
}

// ScriptConnect queues the results of upcoming Connect calls.
func (m *Memory) ScriptConnect(results ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}

// SetEcho enables reflecting value writes back as notifications.
func (m *Memory) SetEcho(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = v
}

// SetResponder overrides how requests are answered.
func (m *Memory) SetResponder(fn func(appliance.Message) (appliance.Message, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Connect implements appliance.Session.
func (m *Memory) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if len(m.script) > 0 {
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			return err
		}
	}
	m.connected = true
	return nil
}

// Close implements appliance.Session.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.connected = false
	return nil
}

// Connected implements appliance.Session.
func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected forces the connectivity flag without emitting an event.
func (m *Memory) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

// Send implements appliance.Session.
func (m *Memory) Send(_ context.Context, msg appliance.Message) (appliance.Message, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return appliance.Message{}, appliance.ErrNotConnected
	}
	m.sent = append(m.sent, msg)
	responder := m.responder
	echo := m.echo
	m.mu.Unlock()

	if echo && msg.Action == appliance.ActionPost && msg.Resource == appliance.ResourceValues {
		m.Inject(appliance.Message{Resource: appliance.ResourceValues, Action: appliance.ActionNotify, Data: msg.Data})
	}

	if responder != nil {
		return responder(msg)
	}
	return appliance.Message{Resource: msg.Resource, Action: appliance.ActionResponse, MsgID: msg.MsgID}, nil
}

// SetMessageHandler implements appliance.Session.
func (m *Memory) SetMessageHandler(fn func(appliance.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = fn
}

// SetConnectionHandler implements appliance.Session.
func (m *Memory) SetConnectionHandler(fn func(appliance.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// Inject delivers an unsolicited message to the message handler.
func (m *Memory) Inject(msg appliance.Message) {
	m.mu.Lock()
	fn := m.onMessage
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// SetValue injects a value notification for one entity UID.
func (m *Memory) SetValue(uid int, value any) {
	m.Inject(appliance.Message{
		Resource: appliance.ResourceValues,
		Action:   appliance.ActionNotify,
		Data:     []map[string]any{{"uid": uid, "value": value}},
	})
}

// Emit updates connectivity to match the event and delivers it to the
// connection handler.
func (m *Memory) Emit(state appliance.ConnectionState) {
	m.mu.Lock()
	m.connected = state == appliance.StateConnected
	fn := m.onState
	m.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// Sent returns a copy of all recorded requests.
func (m *Memory) Sent() []appliance.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]appliance.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSent returns the most recent request.
func (m *Memory) LastSent() (appliance.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return appliance.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// ConnectCalls returns how often Connect was called.
func (m *Memory) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

// CloseCalls returns how often Close was called.
func (m *Memory) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}
