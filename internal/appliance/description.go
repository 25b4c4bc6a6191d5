package appliance

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed description_schema.json
var descriptionSchemaJSON string

const descriptionSchemaURL = "appliance-description-v1.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Info identifies an appliance.
type Info struct {
	Brand           string `json:"brand,omitempty"`
	Type            string `json:"type,omitempty"`
	Model           string `json:"model,omitempty"`
	VIB             string `json:"vib,omitempty"`
	DeviceID        string `json:"deviceID"`
	MAC             string `json:"mac,omitempty"`
	HardwareVersion string `json:"hwVersion,omitempty"`
	SoftwareVersion string `json:"swVersion,omitempty"`
}

// EntityDescription describes one capability entity.
type EntityDescription struct {
	UID         int               `json:"uid"`
	Name        string            `json:"name"`
	Access      string            `json:"access,omitempty"`
	Available   *bool             `json:"available,omitempty"`
	Enumeration map[string]string `json:"enumeration,omitempty"`
	Min         *float64          `json:"min,omitempty"`
	Max         *float64          `json:"max,omitempty"`
	Step        *float64          `json:"stepSize,omitempty"`
	InitValue   any               `json:"initValue,omitempty"`
}

// ProgramDescription describes one appliance program.
type ProgramDescription struct {
	UID     int    `json:"uid"`
	Name    string `json:"name"`
	Options []int  `json:"options,omitempty"`
}

// Description is the capability description document of an appliance.
type Description struct {
	Info            *Info                `json:"info"`
	Status          []EntityDescription  `json:"status,omitempty"`
	Setting         []EntityDescription  `json:"setting,omitempty"`
	Event           []EntityDescription  `json:"event,omitempty"`
	Command         []EntityDescription  `json:"command,omitempty"`
	Option          []EntityDescription  `json:"option,omitempty"`
	Program         []ProgramDescription `json:"program,omitempty"`
	ActiveProgram   *EntityDescription   `json:"activeProgram,omitempty"`
	SelectedProgram *EntityDescription   `json:"selectedProgram,omitempty"`
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(descriptionSchemaURL, strings.NewReader(descriptionSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("adding description schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(descriptionSchemaURL)
	})
	return schema, schemaErr
}

// ParseDescription validates a description document against the embedded
// schema and decodes it.
func ParseDescription(data []byte) (*Description, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	if obj, ok := doc.(map[string]any); ok {
		if _, has := obj["info"]; !has {
			return nil, ErrNoDeviceInfo
		}
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}

	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	return &desc, nil
}

// LoadDescription reads and parses a description file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading description %s: %w", path, err)
	}
	return ParseDescription(data)
}

// entityConfig converts a description entry into an EntityConfig.
func (d EntityDescription) entityConfig(typ EntityType) (EntityConfig, error) {
	access, err := ParseAccess(d.Access)
	if err != nil {
		return EntityConfig{}, fmt.Errorf("entity %s: %w", d.Name, err)
	}
	if d.Access == "" {
		access = defaultAccess(typ)
	}
	available := true
	if d.Available != nil {
		available = *d.Available
	}
	enum, err := parseEnumeration(d.Enumeration)
	if err != nil {
		return EntityConfig{}, fmt.Errorf("entity %s: %w", d.Name, err)
	}
	return EntityConfig{
		UID:       d.UID,
		Name:      d.Name,
		Type:      typ,
		Access:    access,
		Available: available,
		Enum:      enum,
		Min:       d.Min,
		Max:       d.Max,
		Step:      d.Step,
		Value:     d.InitValue,
	}, nil
}

func defaultAccess(typ EntityType) Access {
	switch typ {
	case TypeStatus, TypeEvent:
		return AccessRead
	case TypeCommand:
		return AccessWriteOnly
	default:
		return AccessReadWrite
	}
}

// parseEnumeration orders enumeration entries by numeric code.
func parseEnumeration(in map[string]string) ([]EnumOption, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]EnumOption, 0, len(in))
	for k, label := range in {
		code, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: enumeration key %q", ErrInvalidDescription, k)
		}
		out = append(out, EnumOption{Value: code, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}
