package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

func TestUniqueID(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindSensor, Key: "sensor_door", Entity: "BSH.Common.Status.DoorState"})
	assert.Equal(t, "HOOD-1-sensor_door", p.UniqueID())
}

func TestNewMissingCapability(t *testing.T) {
	f := newFixture(t)

	_, err := New(Description{Kind: KindSensor, Key: "x", Entity: "Does.Not.Exist"}, f.deps())
	assert.ErrorIs(t, err, ErrMissingCapability)

	_, err = New(Description{
		Kind: KindEventSensor, Key: "y",
		Entities: []string{"BSH.Common.Event.ProgramFinished", "Missing.Event"},
		Options:  []string{"a", "b", "idle"},
	}, f.deps())
	assert.ErrorIs(t, err, ErrMissingCapability)
}

func TestDescriptionValidate(t *testing.T) {
	tests := []struct {
		name string
		desc Description
	}{
		{"empty key", Description{Kind: KindSensor, Entity: "a"}},
		{"unknown kind", Description{Kind: "toaster", Key: "k", Entity: "a"}},
		{"event without options", Description{Kind: KindEventSensor, Key: "k", Entity: "a"}},
		{"fan without speeds", Description{Kind: KindFan, Key: "k"}},
		{"sensor without entity", Description{Kind: KindSensor, Key: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.desc.Validate(), ErrInvalidDescription)
		})
	}
}

func TestCreateSkipsFailuresWithoutAbortingSiblings(t *testing.T) {
	f := newFixture(t)
	descs := []Description{
		{Kind: KindSensor, Key: "sensor_temperature_ambient", Entity: "Refrigeration.Common.Status.TemperatureAmbient"},
		{Kind: KindBinarySensor, Key: "binary_sensor_missing", Entity: "Refrigeration.Common.Status.Door.Freezer"},
		{Kind: KindBinarySensor, Key: "binary_sensor_door", Entity: "BSH.Common.Status.DoorState",
			ValueOn: []string{"Open"}, ValueOff: []string{"Closed"}},
	}

	got := Create(descs, f.deps())

	require.Len(t, got, 2)
	assert.Equal(t, "sensor_temperature_ambient", got[0].Key())
	assert.Equal(t, "binary_sensor_door", got[1].Key())
	assert.Equal(t, 1, f.log.warns)
}

func TestAvailabilityIsConnectivityOrAndAccess(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindSensor, Key: "door", Entity: "BSH.Common.Status.DoorState"})

	tests := []struct {
		supervisor, session, want bool
	}{
		{true, true, true},
		{true, false, true},
		{false, true, true},
		{false, false, false},
	}
	for _, tt := range tests {
		f.conn.set(tt.supervisor)
		f.mem.SetConnected(tt.session)
		assert.Equal(t, tt.want, p.Available(), "supervisor=%v session=%v", tt.supervisor, tt.session)
	}
}

func TestAvailabilityRequiresAllowedAccess(t *testing.T) {
	f := newFixture(t)

	cmd := f.build(t, Description{Kind: KindSensor, Key: "ack", Entity: "BSH.Common.Command.AcknowledgeEvent"})
	assert.False(t, cmd.Available(), "write-only capability is not readable")

	door := f.build(t, Description{Kind: KindSensor, Key: "door", Entity: "BSH.Common.Status.DoorState"})
	assert.True(t, door.Available())

	e, _ := f.app.Entity("BSH.Common.Status.DoorState")
	none := appliance.AccessNone
	e.ApplyDescriptionChange(appliance.DescriptionChange{Access: &none})
	assert.False(t, door.Available())

	custom := f.build(t, Description{
		Kind: KindSensor, Key: "ack2", Entity: "BSH.Common.Command.AcknowledgeEvent",
		AvailableAccess: []appliance.Access{appliance.AccessWriteOnly},
	})
	assert.True(t, custom.Available())
}

func TestExtraAttributes(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{
		Kind: KindSensor, Key: "door", Entity: "BSH.Common.Status.DoorState",
		ExtraAttributes: []ExtraAttribute{
			{Name: "raw_state", Entity: "BSH.Common.Status.OperationState"},
			{Name: "label", Entity: "BSH.Common.Status.OperationState", ValueFn: func(e *appliance.Entity) (any, error) {
				return e.Value(), nil
			}},
			{Name: "broken", Entity: "BSH.Common.Status.OperationState", ValueFn: func(*appliance.Entity) (any, error) {
				return nil, errors.New("boom")
			}},
			{Name: "panicky", Entity: "BSH.Common.Status.OperationState", ValueFn: func(*appliance.Entity) (any, error) {
				panic("bad derivation")
			}},
			{Name: "absent", Entity: "Not.There"},
		},
	})

	attrs := p.ExtraAttributes()

	assert.Equal(t, 1, attrs["raw_state"])
	assert.Equal(t, "Ready", attrs["label"])
	assert.Contains(t, attrs, "broken")
	assert.Nil(t, attrs["broken"])
	assert.Contains(t, attrs, "panicky")
	assert.Nil(t, attrs["panicky"])
	assert.NotContains(t, attrs, "absent")
}

func TestNotificationPublishesState(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindBinarySensor, Key: "door", Entity: "BSH.Common.Status.DoorState",
		ValueOn: []string{"Open"}, ValueOff: []string{"Closed"}})
	p.AddedToHost()

	f.mem.SetValue(527, 0)

	require.Equal(t, 1, f.pub.count())
	st := f.pub.last()
	assert.Equal(t, "HOOD-1-door", st.UniqueID)
	assert.Equal(t, true, st.Value)
	assert.True(t, st.Available)
	assert.True(t, st.Changed)
}

func TestChangedFlag(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindSensor, Key: "temp", Entity: "Refrigeration.Common.Status.TemperatureAmbient"})

	p.Publish()
	assert.True(t, f.pub.last().Changed)
	p.Publish()
	assert.False(t, f.pub.last().Changed)

	f.conn.set(false)
	f.mem.SetConnected(false)
	p.Publish()
	assert.True(t, f.pub.last().Changed, "availability change counts")
}

func TestReentrantNotificationIsSuppressed(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindSensor, Key: "door", Entity: "BSH.Common.Status.DoorState"})
	p.AddedToHost()

	nested := 0
	f.pub.hook = func(State) {
		nested++
		if nested < 5 {
			// A cascading update inside the publish call stack.
			f.mem.SetValue(527, nested%2)
		}
	}

	f.mem.SetValue(527, 0)

	assert.Equal(t, 1, f.pub.count(), "nested notifications must not re-publish")

	// The guard is released afterwards.
	f.pub.hook = nil
	f.mem.SetValue(527, 1)
	assert.Equal(t, 2, f.pub.count())
}

func TestRemovedFromHostUnsubscribesExactly(t *testing.T) {
	f := newFixture(t)
	event := f.build(t, Description{
		Kind: KindEventSensor, Key: "events",
		Entity:   "BSH.Common.Event.ProgramFinished",
		Entities: []string{"Cooking.Hood.Event.GreaseFilterMaxSaturationNearlyReached"},
		Options:  []string{"finished", "grease", "idle"},
	})
	other := f.build(t, Description{Kind: KindSensor, Key: "finished", Entity: "BSH.Common.Event.ProgramFinished"})

	primary, _ := f.app.Entity("BSH.Common.Event.ProgramFinished")
	secondary, _ := f.app.Entity("Cooking.Hood.Event.GreaseFilterMaxSaturationNearlyReached")

	event.AddedToHost()
	event.AddedToHost()
	other.AddedToHost()
	assert.Equal(t, 2, primary.ListenerCount())
	assert.Equal(t, 1, secondary.ListenerCount())

	event.RemovedFromHost()
	assert.Equal(t, 1, primary.ListenerCount())
	assert.Equal(t, 0, secondary.ListenerCount())

	f.mem.SetValue(21, 1)
	require.Equal(t, 1, f.pub.count())
	assert.Equal(t, "HOOD-1-finished", f.pub.last().UniqueID)
}

func TestCommandOnReadOnlyKind(t *testing.T) {
	f := newFixture(t)
	p := f.build(t, Description{Kind: KindSensor, Key: "door", Entity: "BSH.Common.Status.DoorState"})
	err := p.Command(t.Context(), Command{Action: CommandTurnOn})
	assert.ErrorIs(t, err, ErrValidation)
}
