package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// derivations are the extra-attribute functions catalogs may reference.
var derivations = map[string]entity.ValueFunc{
	"lower":              deriveLower,
	"enum_label":         deriveEnumLabel,
	"seconds_to_minutes": deriveSecondsToMinutes,
	"options":            deriveOptions,
}

// Derivation looks up a registered derivation function.
func Derivation(name string) (entity.ValueFunc, bool) {
	fn, ok := derivations[name]
	return fn, ok
}

// Derivations returns the registered function names, sorted.
func Derivations() []string {
	names := make([]string, 0, len(derivations))
	for name := range derivations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func deriveLower(e *appliance.Entity) (any, error) {
	v := e.Value()
	if v == nil {
		return nil, nil
	}
	return strings.ToLower(fmt.Sprint(v)), nil
}

func deriveEnumLabel(e *appliance.Entity) (any, error) {
	code, ok := e.RawValue().(int)
	if !ok {
		return nil, fmt.Errorf("%s: value %v is not an enumeration code", e.Name(), e.RawValue())
	}
	label, ok := e.Label(code)
	if !ok {
		return nil, fmt.Errorf("%s: no label for %d", e.Name(), code)
	}
	return label, nil
}

func deriveSecondsToMinutes(e *appliance.Entity) (any, error) {
	var seconds float64
	switch v := e.RawValue().(type) {
	case int:
		seconds = float64(v)
	case float64:
		seconds = v
	default:
		return nil, fmt.Errorf("%s: value %v is not a duration", e.Name(), v)
	}
	return int(math.Round(seconds / 60)), nil
}

func deriveOptions(e *appliance.Entity) (any, error) {
	enum := e.Enum()
	if len(enum) == 0 {
		return nil, fmt.Errorf("%s: not an enumeration", e.Name())
	}
	labels := make([]string, 0, len(enum))
	for _, o := range enum {
		labels = append(labels, o.Label)
	}
	return labels, nil
}
