package appliance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu     sync.Mutex
	calls  int
	values []any
	hook   func(*Entity)
}

func (r *recordingListener) OnEntityUpdate(e *Entity) {
	r.mu.Lock()
	r.calls++
	r.values = append(r.values, e.Value())
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *recordingListener) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func doorEntity() *Entity {
	return NewEntity(EntityConfig{
		UID:    527,
		Name:   "BSH.Common.Status.DoorState",
		Type:   TypeStatus,
		Access: AccessRead,
		Enum:   []EnumOption{{0, "Open"}, {1, "Closed"}},
		Value:  float64(1),
	})
}

func TestEntityValueUsesEnumLabel(t *testing.T) {
	e := doorEntity()

	assert.Equal(t, 1, e.RawValue())
	assert.Equal(t, "Closed", e.Value())

	e.Update(float64(0))
	assert.Equal(t, 0, e.RawValue())
	assert.Equal(t, "Open", e.Value())

	// Codes without a label fall back to the raw value.
	e.Update(7)
	assert.Equal(t, 7, e.Value())
}

func TestEntityCallbackRegistrationIsIdempotent(t *testing.T) {
	e := doorEntity()
	l := &recordingListener{}

	e.RegisterCallback(l)
	e.RegisterCallback(l)
	assert.Equal(t, 1, e.ListenerCount())

	e.Update(0)
	assert.Equal(t, 1, l.count(), "listener must be notified exactly once")

	e.UnregisterCallback(l)
	e.UnregisterCallback(l)
	assert.Equal(t, 0, e.ListenerCount())

	e.Update(1)
	assert.Equal(t, 1, l.count())
}

func TestEntityUnregisterRemovesOnlyOwnListener(t *testing.T) {
	e := doorEntity()
	a := &recordingListener{}
	b := &recordingListener{}
	e.RegisterCallback(a)
	e.RegisterCallback(b)

	e.UnregisterCallback(a)
	e.Update(0)

	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
}

func TestEntityListenerSeesNewValue(t *testing.T) {
	e := doorEntity()
	l := &recordingListener{}
	e.RegisterCallback(l)

	e.Update(0)

	require.Len(t, l.values, 1)
	assert.Equal(t, "Open", l.values[0])
}

func TestEntityUnregisterDuringNotification(t *testing.T) {
	e := doorEntity()
	second := &recordingListener{}
	first := &recordingListener{}
	first.hook = func(ent *Entity) {
		ent.UnregisterCallback(first)
		ent.UnregisterCallback(second)
	}
	e.RegisterCallback(first)
	e.RegisterCallback(second)

	assert.NotPanics(t, func() { e.Update(0) })
	assert.Equal(t, 0, e.ListenerCount())

	// Map iteration order is random: second either ran before first or was
	// skipped after being removed.
	assert.LessOrEqual(t, second.count(), 1)
}

func TestEntityRegisterDuringNotification(t *testing.T) {
	e := doorEntity()
	late := &recordingListener{}
	first := &recordingListener{}
	first.hook = func(ent *Entity) { ent.RegisterCallback(late) }
	e.RegisterCallback(first)

	assert.NotPanics(t, func() { e.Update(0) })
	assert.Equal(t, 2, e.ListenerCount())
}

func TestEntitySetValueRequiresWritableAccess(t *testing.T) {
	e := doorEntity()
	err := e.SetValue(context.Background(), "Open")
	assert.True(t, errors.Is(err, ErrNotWritable))
}

func TestEntitySetValueDetached(t *testing.T) {
	e := NewEntity(EntityConfig{UID: 1, Name: "x", Access: AccessReadWrite})
	err := e.SetValue(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestEntityApplyDescriptionChange(t *testing.T) {
	e := doorEntity()
	l := &recordingListener{}
	e.RegisterCallback(l)

	acc := AccessReadWrite
	off := false
	e.ApplyDescriptionChange(DescriptionChange{Access: &acc, Available: &off})

	assert.Equal(t, AccessReadWrite, e.Access())
	assert.False(t, e.Available())
	assert.Equal(t, 1, l.count())
}

func TestParseAccess(t *testing.T) {
	tests := []struct {
		in   string
		want Access
	}{
		{"read", AccessRead},
		{"readWrite", AccessReadWrite},
		{"WRITEONLY", AccessWriteOnly},
		{"none", AccessNone},
		{"", AccessNone},
	}
	for _, tt := range tests {
		got, err := ParseAccess(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseAccess("sometimes")
	assert.ErrorIs(t, err, ErrInvalidDescription)
}
