package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/hcbridge/internal/appliance"
)

func enumEntity(value any) *appliance.Entity {
	return appliance.NewEntity(appliance.EntityConfig{
		UID:   527,
		Name:  "BSH.Common.Status.DoorState",
		Enum:  []appliance.EnumOption{{Value: 0, Label: "Open"}, {Value: 1, Label: "Closed"}},
		Value: value,
	})
}

func TestDerivations(t *testing.T) {
	assert.Equal(t, []string{"enum_label", "lower", "options", "seconds_to_minutes"}, Derivations())

	lower, ok := Derivation("lower")
	require.True(t, ok)
	v, err := lower(enumEntity(1))
	require.NoError(t, err)
	assert.Equal(t, "closed", v)

	v, err = lower(enumEntity(nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	label, _ := Derivation("enum_label")
	v, err = label(enumEntity(0))
	require.NoError(t, err)
	assert.Equal(t, "Open", v)
	_, err = label(enumEntity(7))
	assert.Error(t, err)

	options, _ := Derivation("options")
	v, err = options(enumEntity(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Open", "Closed"}, v)

	plain := appliance.NewEntity(appliance.EntityConfig{UID: 544, Name: "BSH.Common.Option.RemainingProgramTime", Value: 89.0})
	_, err = options(plain)
	assert.Error(t, err)

	minutes, _ := Derivation("seconds_to_minutes")
	v, err = minutes(plain)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	text := appliance.NewEntity(appliance.EntityConfig{UID: 1, Name: "X", Value: "soon"})
	_, err = minutes(text)
	assert.Error(t, err)

	_, ok = Derivation("reverse")
	assert.False(t, ok)
}
