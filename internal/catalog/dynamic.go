package catalog

import (
	"sort"
	"strings"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// Capability names used by the generated descriptions.
const (
	VentingLevelEntity    = "Cooking.Common.Option.Hood.VentingLevel"
	IntensiveLevelEntity  = "Cooking.Common.Option.Hood.IntensiveLevel"
	HoodVentingProgram    = "Cooking.Common.Program.Hood.Venting"
	activeProgramKey      = "active_program"
	hoodFanKey            = "fan_hood"
	wifiSignalStrengthKey = "sensor_wifi_signal_strength"
)

// Dynamic generates the descriptions derived from the appliance itself.
func Dynamic(app Appliance) []entity.Description {
	var out []entity.Description
	if d, ok := activeProgramDescription(app); ok {
		out = append(out, d)
	}
	if d, ok := hoodFanDescription(app); ok {
		out = append(out, d)
	}
	return append(out, wifiDescription())
}

// activeProgramDescription maps each program's dotted name to its
// lower-cased last segment.
func activeProgramDescription(app Appliance) (entity.Description, bool) {
	if _, ok := app.Entity(appliance.ActiveProgramEntity); !ok {
		return entity.Description{}, false
	}
	programs := app.Programs()
	if len(programs) == 0 {
		return entity.Description{}, false
	}

	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)

	mapping := make(map[string]string, len(names))
	for _, name := range names {
		mapping[name] = ProgramShortName(name)
	}
	return entity.Description{
		Kind:                entity.KindActiveProgram,
		Key:                 activeProgramKey,
		Name:                "Active program",
		Entity:              appliance.ActiveProgramEntity,
		DeviceClass:         "enum",
		HasStateTranslation: true,
		Mapping:             mapping,
	}, true
}

// ProgramShortName returns the lower-cased last segment of a dotted
// program name.
func ProgramShortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// hoodFanDescription builds the fan from whichever level options exist.
func hoodFanDescription(app Appliance) (entity.Description, bool) {
	var speeds []string
	for _, name := range []string{VentingLevelEntity, IntensiveLevelEntity} {
		if _, ok := app.Entity(name); ok {
			speeds = append(speeds, name)
		}
	}
	if len(speeds) == 0 {
		return entity.Description{}, false
	}
	d := entity.Description{
		Kind:     entity.KindFan,
		Key:      hoodFanKey,
		Name:     "Fan",
		Entities: speeds,
	}
	if _, ok := app.Program(HoodVentingProgram); ok {
		d.DefaultProgram = HoodVentingProgram
	}
	return d, true
}

func wifiDescription() entity.Description {
	return entity.Description{
		Kind:        entity.KindWiFi,
		Key:         wifiSignalStrengthKey,
		Name:        "WiFi signal strength",
		DeviceClass: "signal_strength",
		Unit:        "dBm",
		Category:    "diagnostic",
		StateClass:  "measurement",
	}
}
