package hass

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/hcbridge/internal/entity"
)

// Payload values understood by Home Assistant.
const (
	PayloadOn    = "ON"
	PayloadOff   = "OFF"
	PayloadPress = "PRESS"

	// PayloadNone sets a sensor or binary sensor to unknown.
	PayloadNone = "None"
)

// statePayload encodes an entity value for its state topic.
func statePayload(kind entity.Kind, v any) string {
	if v == nil {
		return PayloadNone
	}
	switch kind {
	case entity.KindBinarySensor, entity.KindSwitch, entity.KindFan:
		if b, ok := v.(bool); ok {
			if b {
				return PayloadOn
			}
			return PayloadOff
		}
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(n)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// attributesPayload encodes entity attributes as a JSON object.
func attributesPayload(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(attrs)
}

// parseCommand maps a command topic payload to an entity command.
func parseCommand(kind entity.Kind, payload []byte) (entity.Command, error) {
	s := strings.TrimSpace(string(payload))
	switch kind {
	case entity.KindSwitch, entity.KindFan:
		switch strings.ToUpper(s) {
		case PayloadOn:
			return entity.Command{Action: entity.CommandTurnOn}, nil
		case PayloadOff:
			return entity.Command{Action: entity.CommandTurnOff}, nil
		}
		return entity.Command{}, entity.Validationf("unexpected payload %q", s)
	case entity.KindNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return entity.Command{}, entity.Validationf("%q is not a number", s)
		}
		return entity.Command{Action: entity.CommandSet, Value: f}, nil
	case entity.KindSelect:
		return entity.Command{Action: entity.CommandSet, Value: s}, nil
	case entity.KindButton, entity.KindStartButton:
		return entity.Command{Action: entity.CommandPress}, nil
	default:
		return entity.Command{}, entity.Validationf("%s entities take no commands", kind)
	}
}

// parsePercentage maps a fan percentage command payload.
func parsePercentage(payload []byte) (entity.Command, error) {
	s := strings.TrimSpace(string(payload))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return entity.Command{}, entity.Validationf("%q is not a percentage", s)
	}
	return entity.Command{Action: entity.CommandSetPercentage, Value: f}, nil
}
