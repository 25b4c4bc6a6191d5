package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Entry is one catalog entry as written in YAML.
type Entry struct {
	Key             string             `yaml:"key"`
	Name            string             `yaml:"name,omitempty"`
	Entity          string             `yaml:"entity,omitempty"`
	Entities        []string           `yaml:"entities,omitempty"`
	AvailableAccess []appliance.Access `yaml:"available_access,omitempty"`

	DeviceClass string `yaml:"device_class,omitempty"`
	Unit        string `yaml:"unit,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Category    string `yaml:"entity_category,omitempty"`
	StateClass  string `yaml:"state_class,omitempty"`

	HasStateTranslation bool              `yaml:"has_state_translation,omitempty"`
	Mapping             map[string]string `yaml:"mapping,omitempty"`
	Options             []string          `yaml:"options,omitempty"`
	ValueOn             []string          `yaml:"value_on,omitempty"`
	ValueOff            []string          `yaml:"value_off,omitempty"`
	DefaultProgram      string            `yaml:"default_program,omitempty"`

	Min  *float64 `yaml:"min,omitempty"`
	Max  *float64 `yaml:"max,omitempty"`
	Step *float64 `yaml:"step,omitempty"`

	ExtraAttributes []ExtraAttributeEntry `yaml:"extra_attributes,omitempty"`
}

// ExtraAttributeEntry is an extra attribute as written in YAML.
type ExtraAttributeEntry struct {
	Name   string `yaml:"name"`
	Entity string `yaml:"entity"`
	Fn     string `yaml:"fn,omitempty"`
}

// Catalog is a validated, ordered set of entity descriptions.
//
// Thread Safety:
//   - A Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	descs   []entity.Description
	dynamic bool
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithoutDynamic disables descriptions generated from the appliance.
func WithoutDynamic() Option {
	return func(c *Catalog) { c.dynamic = false }
}

// Parse builds a catalog from YAML.
//
// Parameters:
//   - data: YAML document with one list of entries per entity kind
//   - opts: Catalog options
//
// Returns:
//   - *Catalog: Validated catalog
//   - error: ErrInvalidCatalog, ErrUnknownKind or ErrUnknownDerivation
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	var groups map[string][]Entry
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	for kind := range groups {
		if !entity.Kind(kind).Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
	}

	c := &Catalog{dynamic: true}
	for _, o := range opts {
		o(c)
	}

	// Groups are read in kind order; YAML map order is not significant.
	for _, kind := range entity.Kinds {
		for i, e := range groups[string(kind)] {
			d, err := e.description(kind)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
			}
			c.descs = append(c.descs, d)
		}
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default(opts ...Option) (*Catalog, error) {
	return Parse(defaultCatalog, opts...)
}

// Load returns the embedded catalog, extended by the file at path when
// path is non-empty. Entries of the file take precedence over built-in
// entries with the same key.
func Load(path string, opts ...Option) (*Catalog, error) {
	base, err := Default(opts...)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	override, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return override.Extend(base), nil
}

// Extend returns a catalog with c's entries followed by base's.
func (c *Catalog) Extend(base *Catalog) *Catalog {
	out := &Catalog{dynamic: c.dynamic && base.dynamic}
	out.descs = append(out.descs, c.descs...)
	out.descs = append(out.descs, base.descs...)
	return out
}

// Descriptions returns the static descriptions in catalog order.
func (c *Catalog) Descriptions() []entity.Description {
	out := make([]entity.Description, len(c.descs))
	copy(out, c.descs)
	return out
}

// Len returns the number of static descriptions.
func (c *Catalog) Len() int { return len(c.descs) }

// Appliance is the part of an appliance the catalog inspects.
type Appliance interface {
	Entity(name string) (*appliance.Entity, bool)
	Program(name string) (*appliance.Program, bool)
	Programs() map[string]*appliance.Program
}

// Available returns the descriptions that apply to the appliance, grouped
// in kind order. A description applies when every capability it references
// exists; of several descriptions sharing a key only the first applicable
// one is kept.
func (c *Catalog) Available(app Appliance) []entity.Description {
	candidates := c.descs
	if c.dynamic {
		candidates = append(candidates[:len(candidates):len(candidates)], Dynamic(app)...)
	}

	seen := make(map[string]bool)
	var out []entity.Description
	for _, kind := range entity.Kinds {
		for _, d := range candidates {
			if d.Kind != kind || seen[d.Key] {
				continue
			}
			if !hasAll(app, d.References()) {
				continue
			}
			seen[d.Key] = true
			out = append(out, d)
		}
	}
	return out
}

func hasAll(app Appliance, names []string) bool {
	for _, name := range names {
		if _, ok := app.Entity(name); !ok {
			return false
		}
	}
	return true
}

func (e Entry) description(kind entity.Kind) (entity.Description, error) {
	d := entity.Description{
		Kind:                kind,
		Key:                 e.Key,
		Name:                e.Name,
		Entity:              e.Entity,
		Entities:            e.Entities,
		AvailableAccess:     e.AvailableAccess,
		DeviceClass:         e.DeviceClass,
		Unit:                e.Unit,
		Icon:                e.Icon,
		Category:            e.Category,
		StateClass:          e.StateClass,
		HasStateTranslation: e.HasStateTranslation,
		Mapping:             e.Mapping,
		Options:             e.Options,
		ValueOn:             e.ValueOn,
		ValueOff:            e.ValueOff,
		DefaultProgram:      e.DefaultProgram,
		Min:                 e.Min,
		Max:                 e.Max,
		Step:                e.Step,
	}
	for _, a := range e.ExtraAttributes {
		attr := entity.ExtraAttribute{Name: a.Name, Entity: a.Entity}
		if a.Fn != "" {
			fn, ok := Derivation(a.Fn)
			if !ok {
				return entity.Description{}, fmt.Errorf("%w: %q on %s", ErrUnknownDerivation, a.Fn, e.Key)
			}
			attr.ValueFn = fn
		}
		d.ExtraAttributes = append(d.ExtraAttributes, attr)
	}
	if err := d.Validate(); err != nil {
		return entity.Description{}, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return d, nil
}
