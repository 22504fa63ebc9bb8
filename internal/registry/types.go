package registry

// FieldType is the closed set of value types a target field can carry.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeBool     FieldType = "bool"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeEnum     FieldType = "enum"
	TypeM2O      FieldType = "m2o"
)

var validTypes = map[FieldType]bool{
	TypeString: true, TypeEmail: true, TypePhone: true, TypeDate: true,
	TypeDatetime: true, TypeBool: true, TypeInt: true, TypeFloat: true,
	TypeEnum: true, TypeM2O: true,
}

// FieldSpec describes one target field of a model. Optional sub-fields are
// populated only for the relevant type: Target for m2o, MapFromSeed/Values
// for enum.
type FieldSpec struct {
	Name        string            `yaml:"name"`
	Type        FieldType         `yaml:"type"`
	Required    bool              `yaml:"required"`
	Optional    bool              `yaml:"optional"`
	Derived     bool              `yaml:"derived"`
	Default     *string           `yaml:"default"`
	Transform   string            `yaml:"transform"`
	Rule        string            `yaml:"rule"`
	MapFromSeed string            `yaml:"map_from_seed"`
	Values      map[string]string `yaml:"values"`
	Target      string            `yaml:"target"`
}

// ModelSpec describes one target model: its output file, the exact CSV
// header order, the external-ID template, and its fields keyed by header.
type ModelSpec struct {
	Name        string               `yaml:"-"`
	CSVFilename string               `yaml:"csv_filename"`
	Headers     []string             `yaml:"headers"`
	IDTemplate  string               `yaml:"id_template"`
	Fields      map[string]FieldSpec `yaml:"fields"`
}

// Field returns the spec for a header name, if declared.
func (m ModelSpec) Field(name string) (FieldSpec, bool) {
	f, ok := m.Fields[name]
	return f, ok
}

// SeedSpec is a reference vocabulary: canonical external IDs plus synonym
// aliases that resolve to them.
type SeedSpec struct {
	Canonical []string          `yaml:"canonical"`
	Synonyms  map[string]string `yaml:"synonyms"`

	canonicalSet map[string]bool
}

// IsCanonical reports whether v is one of the seed's canonical values.
// Lookup is exact-match; callers must not fold case.
func (s SeedSpec) IsCanonical(v string) bool {
	return s.canonicalSet[v]
}

// Resolve maps a synonym to its canonical value.
func (s SeedSpec) Resolve(alias string) (string, bool) {
	v, ok := s.Synonyms[alias]
	return v, ok
}

// Registry is the read-only description of everything an export must obey.
// Instances returned by the Loader are fully validated.
type Registry struct {
	Version     int                  `yaml:"version"`
	ImportOrder []string             `yaml:"import_order"`
	Models      map[string]ModelSpec `yaml:"models"`
	Seeds       map[string]SeedSpec  `yaml:"seeds"`
}

// Model returns the spec for a model name.
func (r *Registry) Model(name string) (ModelSpec, bool) {
	m, ok := r.Models[name]
	return m, ok
}

// Seed returns the seed vocabulary for a name.
func (r *Registry) Seed(name string) (SeedSpec, bool) {
	s, ok := r.Seeds[name]
	return s, ok
}
