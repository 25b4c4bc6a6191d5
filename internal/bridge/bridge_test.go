package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
	"github.com/nerrad567/hcbridge/internal/supervisor"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func TestNew_RequiresAppliance(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoAppliance)
}

func TestStart_RegistersEntitiesWithSinks(t *testing.T) {
	sink := newRecordingSink()
	b, _ := newTestBridge(t, sink)
	t.Cleanup(func() { _ = b.Stop() })

	require.NoError(t, b.Start(context.Background()))

	registered := sink.registeredFor(testDeviceID)
	require.NotEmpty(t, registered)
	assert.Len(t, registered, len(b.Entities()))

	for _, key := range []string{"switch_power", "switch_lighting", "binary_sensor_door", "fan_hood", "active_program"} {
		_, ok := b.Entity(key)
		assert.True(t, ok, "expected entity %s", key)
	}
	assert.GreaterOrEqual(t, sink.count(), len(registered), "initial refresh publishes every entity")
}

func TestStart_Twice(t *testing.T) {
	b, _ := newTestBridge(t)
	t.Cleanup(func() { _ = b.Stop() })

	require.NoError(t, b.Start(context.Background()))
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
}

func TestStart_SinkRegistrationFails(t *testing.T) {
	sink := newRecordingSink()
	sink.err = errors.New("broker gone")
	b, _ := newTestBridge(t, sink)
	t.Cleanup(func() { _ = b.Stop() })

	err := b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
}

func TestStart_ConnectsAndPublishesAvailable(t *testing.T) {
	sink := newRecordingSink()
	b, _ := newTestBridge(t, sink)
	t.Cleanup(func() { _ = b.Stop() })

	require.NoError(t, b.Start(context.Background()))

	require.Eventually(t, b.Connected, waitFor, tick)
	assert.Equal(t, supervisor.StateConnected, b.ConnectionState())
	require.Eventually(t, func() bool {
		return sink.find("switch_power", func(st entity.State) bool { return st.Available && st.Value == true })
	}, waitFor, tick)
}

func TestValueUpdatesFanOutToSinks(t *testing.T) {
	sink := newRecordingSink()
	b, mem := newTestBridge(t, sink)
	t.Cleanup(func() { _ = b.Stop() })

	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, b.Connected, waitFor, tick)

	mem.SetValue(527, 0)

	require.Eventually(t, func() bool {
		return sink.find("binary_sensor_door", func(st entity.State) bool {
			return st.Changed && st.Value == true && st.DeviceID == testDeviceID
		})
	}, waitFor, tick)
}

func TestAddSink_ReceivesLaterStates(t *testing.T) {
	b, mem := newTestBridge(t)
	t.Cleanup(func() { _ = b.Stop() })
	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, b.Connected, waitFor, tick)

	late := newRecordingSink()
	b.AddSink(late)
	mem.SetValue(53253, true)

	require.Eventually(t, func() bool {
		return late.find("switch_lighting", func(st entity.State) bool { return st.Value == true })
	}, waitFor, tick)
	assert.Empty(t, late.registeredFor(testDeviceID))
}

func TestStop_DetachesAndCloses(t *testing.T) {
	b, mem := newTestBridge(t)
	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, b.Connected, waitFor, tick)

	door, ok := b.Appliance().Entity("BSH.Common.Status.DoorState")
	require.True(t, ok)
	require.Positive(t, door.ListenerCount())

	require.NoError(t, b.Stop())
	assert.Zero(t, door.ListenerCount())
	assert.False(t, b.Connected())
	assert.GreaterOrEqual(t, mem.CloseCalls(), 1)

	assert.NoError(t, b.Stop(), "second stop is a no-op")
}

func TestStop_BeforeStart(t *testing.T) {
	b, mem := newTestBridge(t)
	assert.NoError(t, b.Stop())
	assert.Zero(t, mem.CloseCalls())
}

func TestCommand(t *testing.T) {
	b, mem := newTestBridge(t)
	t.Cleanup(func() { _ = b.Stop() })
	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, b.Connected, waitFor, tick)

	err := b.Command(context.Background(), "no_such_entity", entity.Command{Action: entity.CommandTurnOn})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	require.NoError(t, b.Command(context.Background(), "switch_power", entity.Command{Action: entity.CommandTurnOff}))
	msg, ok := mem.LastSent()
	require.True(t, ok)
	assert.Equal(t, appliance.ResourceValues, msg.Resource)
	require.Len(t, msg.Data, 1)
	assert.Equal(t, 539, msg.Data[0]["uid"])
	assert.Equal(t, 1, msg.Data[0]["value"])
}

func TestDeviceInfoFor(t *testing.T) {
	info := appliance.Info{
		Brand:           "BOSCH",
		Type:            "Hood",
		VIB:             "DWF97RV60",
		DeviceID:        testDeviceID,
		MAC:             "68-A4-0E-00-00-01",
		HardwareVersion: "2.0.0.2",
		SoftwareVersion: "3.1.1.5",
	}

	d := DeviceInfoFor(info)
	assert.Equal(t, "Bosch Hood", d.Name)
	assert.Equal(t, "Bosch", d.Manufacturer)
	assert.Equal(t, "Hood", d.Model)
	assert.Equal(t, "DWF97RV60", d.ModelID)
	assert.Equal(t, []string{testDeviceID}, d.Identifiers)
	assert.Equal(t, [][2]string{{ConnectionMAC, "68-A4-0E-00-00-01"}}, d.Connections)
	assert.Equal(t, "2.0.0.2", d.HardwareVersion)
	assert.Equal(t, "3.1.1.5", d.SoftwareVersion)

	bare := DeviceInfoFor(appliance.Info{DeviceID: "X-1"})
	assert.Equal(t, "X-1", bare.Name)
	assert.Empty(t, bare.Connections)
}

func TestBridge_DeviceInfoUsesConfiguredName(t *testing.T) {
	app, _ := newTestAppliance(t)
	b, err := New(Options{Appliance: app, Name: "Kitchen hood"})
	require.NoError(t, err)
	assert.Equal(t, "Kitchen hood", b.DeviceInfo().Name)
	assert.Equal(t, "Bosch", b.DeviceInfo().Manufacturer)
}
