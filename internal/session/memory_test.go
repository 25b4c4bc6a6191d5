package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

func TestMemoryScriptedConnect(t *testing.T) {
	m := NewMemory()
	m.ScriptConnect(appliance.ErrConnectionFailed, nil)

	assert.ErrorIs(t, m.Connect(context.Background()), appliance.ErrConnectionFailed)
	assert.False(t, m.Connected())

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Connected())
	assert.Equal(t, 2, m.ConnectCalls())
}

func TestMemoryEchoesValueWrites(t *testing.T) {
	m := NewMemory()
	m.SetEcho(true)
	var got []appliance.Message
	m.SetMessageHandler(func(msg appliance.Message) { got = append(got, msg) })
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.Send(context.Background(), appliance.Message{
		Resource: appliance.ResourceValues,
		Action:   appliance.ActionPost,
		Data:     []map[string]any{{"uid": 1, "value": true}},
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, appliance.ActionNotify, got[0].Action)
	last, ok := m.LastSent()
	require.True(t, ok)
	assert.Equal(t, appliance.ResourceValues, last.Resource)
}

func TestMemoryEmitTracksConnectivity(t *testing.T) {
	m := NewMemory()
	var states []appliance.ConnectionState
	m.SetConnectionHandler(func(s appliance.ConnectionState) { states = append(states, s) })

	m.Emit(appliance.StateConnected)
	assert.True(t, m.Connected())
	m.Emit(appliance.StateReconnecting)
	assert.False(t, m.Connected())

	assert.Equal(t, []appliance.ConnectionState{appliance.StateConnected, appliance.StateReconnecting}, states)
}

func TestMemorySendRequiresConnection(t *testing.T) {
	m := NewMemory()
	_, err := m.Send(context.Background(), appliance.Message{})
	assert.ErrorIs(t, err, appliance.ErrNotConnected)
}
