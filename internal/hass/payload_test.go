package hass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/entity"
)

func TestStatePayload(t *testing.T) {
	tests := []struct {
		name string
		kind entity.Kind
		v    any
		want string
	}{
		{"nil", entity.KindSensor, nil, PayloadNone},
		{"binary on", entity.KindBinarySensor, true, PayloadOn},
		{"binary off", entity.KindBinarySensor, false, PayloadOff},
		{"binary unknown", entity.KindBinarySensor, nil, PayloadNone},
		{"switch", entity.KindSwitch, true, PayloadOn},
		{"fan off", entity.KindFan, false, PayloadOff},
		{"float", entity.KindSensor, 21.5, "21.5"},
		{"whole float", entity.KindNumber, float64(50), "50"},
		{"int", entity.KindSensor, -62, "-62"},
		{"string", entity.KindSelect, "ready", "ready"},
		{"sensor bool", entity.KindSensor, true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statePayload(tt.kind, tt.v))
		})
	}
}

func TestAttributesPayload(t *testing.T) {
	b, err := attributesPayload(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	b, err = attributesPayload(map[string]any{"percentage": 50})
	require.NoError(t, err)
	assert.JSONEq(t, `{"percentage": 50}`, string(b))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		kind    entity.Kind
		payload string
		want    entity.Command
		wantErr bool
	}{
		{"switch on", entity.KindSwitch, "ON", entity.Command{Action: entity.CommandTurnOn}, false},
		{"switch off lower", entity.KindSwitch, "off", entity.Command{Action: entity.CommandTurnOff}, false},
		{"switch junk", entity.KindSwitch, "toggle", entity.Command{}, true},
		{"fan on", entity.KindFan, "ON", entity.Command{Action: entity.CommandTurnOn}, false},
		{"number", entity.KindNumber, " 42.5 ", entity.Command{Action: entity.CommandSet, Value: 42.5}, false},
		{"number junk", entity.KindNumber, "lots", entity.Command{}, true},
		{"select", entity.KindSelect, "FanStage01", entity.Command{Action: entity.CommandSet, Value: "FanStage01"}, false},
		{"button", entity.KindButton, PayloadPress, entity.Command{Action: entity.CommandPress}, false},
		{"start button", entity.KindStartButton, "", entity.Command{Action: entity.CommandPress}, false},
		{"sensor", entity.KindSensor, "1", entity.Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.kind, []byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePercentage(t *testing.T) {
	cmd, err := parsePercentage([]byte("66"))
	require.NoError(t, err)
	assert.Equal(t, entity.Command{Action: entity.CommandSetPercentage, Value: 66.0}, cmd)

	_, err = parsePercentage([]byte("fast"))
	assert.ErrorIs(t, err, entity.ErrValidation)
}
