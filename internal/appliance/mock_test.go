package appliance

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSession records sent messages and answers them with code 0.
type fakeSession struct {
	mu        sync.Mutex
	connected bool
	sent      []Message
	code      int
	onMessage func(Message)
	onState   func(ConnectionState)
}

func (f *fakeSession) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) Send(_ context.Context, msg Message) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return Message{Resource: msg.Resource, Action: ActionResponse, Code: f.code}, nil
}

func (f *fakeSession) SetMessageHandler(fn func(Message))            { f.onMessage = fn }
func (f *fakeSession) SetConnectionHandler(fn func(ConnectionState)) { f.onState = fn }

func (f *fakeSession) lastSent(t *testing.T) Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no message sent")
	return f.sent[len(f.sent)-1]
}

func loadHood(t *testing.T) (*Appliance, *fakeSession) {
	t.Helper()
	desc, err := LoadDescription("testdata/hood.json")
	require.NoError(t, err)
	sess := &fakeSession{}
	app, err := New(desc, sess)
	require.NoError(t, err)
	return app, sess
}
