package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HazardType names the category of event being predicted.
type HazardType string

const (
	Cyclone    HazardType = "cyclone"
	Earthquake HazardType = "earthquake"
)

const (
	// DefaultWindowRows is the row count of a full-window sample.
	DefaultWindowRows = 64
	// DefaultSampleField is the request body field carrying the matrix.
	DefaultSampleField = "spectrogram"
)

// ErrUnknownHazard is returned when a hazard type has no table entry.
var ErrUnknownHazard = errors.New("unknown hazard type")

// HazardSpec is the input contract and endpoint of one hazard type.
type HazardSpec struct {
	Type        HazardType `yaml:"type"`
	Label       string     `yaml:"label"`
	Columns     int        `yaml:"columns"`
	WindowRows  int        `yaml:"window_rows"`
	Path        string     `yaml:"path"`
	SampleField string     `yaml:"sample_field"`
	Example     string     `yaml:"example"`
}

// AllowedRows returns the accepted row counts: a single sample or a full window.
func (s HazardSpec) AllowedRows() []int {
	return []int{1, s.WindowRows}
}

// HazardTable maps hazard types to their specs, preserving declaration order.
type HazardTable struct {
	specs []HazardSpec
	index map[HazardType]int
}

var defaultSpecs = []HazardSpec{
	{
		Type:    Cyclone,
		Columns: 6,
		Path:    "/predict/cyclone",
		Example: "[ [0.6, 0.4, 0.3, 0.2, 0.1, 0.0], ... ]\n(or a single row: [0.6, 0.4, 0.3, 0.2, 0.1, 0.0])",
	},
	{
		Type:    Earthquake,
		Columns: 129,
		Path:    "/predict/earthquake",
		Example: "[ [0.01, 0.02, ..., 0.12, ..., 0.15], ... ]\n(or a single row with 129 values)",
	},
}

// DefaultHazardTable returns the built-in cyclone and earthquake table.
func DefaultHazardTable() *HazardTable {
	t, err := NewHazardTable(defaultSpecs...)
	if err != nil {
		panic(fmt.Sprintf("default hazard table: %v", err))
	}
	return t
}

// NewHazardTable validates the specs and fills defaults for window rows,
// sample field and label.
func NewHazardTable(specs ...HazardSpec) (*HazardTable, error) {
	if len(specs) == 0 {
		return nil, errors.New("hazard table is empty")
	}

	t := &HazardTable{
		specs: make([]HazardSpec, 0, len(specs)),
		index: make(map[HazardType]int, len(specs)),
	}
	for i, s := range specs {
		s.Type = HazardType(strings.ToLower(strings.TrimSpace(string(s.Type))))
		if s.Type == "" {
			return nil, fmt.Errorf("hazard %d: type is required", i)
		}
		if _, dup := t.index[s.Type]; dup {
			return nil, fmt.Errorf("hazard %q: duplicate entry", s.Type)
		}
		if s.Columns <= 0 {
			return nil, fmt.Errorf("hazard %q: columns must be positive", s.Type)
		}
		if s.WindowRows == 0 {
			s.WindowRows = DefaultWindowRows
		}
		if s.WindowRows < 1 {
			return nil, fmt.Errorf("hazard %q: window_rows must be positive", s.Type)
		}
		if !strings.HasPrefix(s.Path, "/") {
			return nil, fmt.Errorf("hazard %q: path must start with /", s.Type)
		}
		if s.SampleField == "" {
			s.SampleField = DefaultSampleField
		}
		if s.Label == "" {
			s.Label = fmt.Sprintf("%s (%dx%d)", titleCase(string(s.Type)), s.WindowRows, s.Columns)
		}
		t.index[s.Type] = len(t.specs)
		t.specs = append(t.specs, s)
	}
	return t, nil
}

// Lookup returns the spec for a hazard type.
func (t *HazardTable) Lookup(h HazardType) (HazardSpec, error) {
	i, ok := t.index[h]
	if !ok {
		return HazardSpec{}, fmt.Errorf("%w: %q", ErrUnknownHazard, h)
	}
	return t.specs[i], nil
}

// Parse resolves a user-supplied hazard name, ignoring case and surrounding space.
func (t *HazardTable) Parse(name string) (HazardType, error) {
	h := HazardType(strings.ToLower(strings.TrimSpace(name)))
	if _, err := t.Lookup(h); err != nil {
		return "", err
	}
	return h, nil
}

// Types lists hazard types in table order.
func (t *HazardTable) Types() []HazardType {
	out := make([]HazardType, len(t.specs))
	for i, s := range t.specs {
		out[i] = s.Type
	}
	return out
}

// Specs returns a copy of the table entries in order.
func (t *HazardTable) Specs() []HazardSpec {
	out := make([]HazardSpec, len(t.specs))
	copy(out, t.specs)
	return out
}

// Default is the hazard selected at session start: the first table entry.
func (t *HazardTable) Default() HazardType {
	return t.specs[0].Type
}

// Validate checks a decoded JSON value against the hazard's shape contract.
func (t *HazardTable) Validate(h HazardType, v any) (Matrix, error) {
	spec, err := t.Lookup(h)
	if err != nil {
		return nil, err
	}
	return ValidateShape(spec, v)
}

type tableFile struct {
	Hazards []HazardSpec `yaml:"hazards"`
}

// ParseHazardTable builds a table from YAML of the form
//
//	hazards:
//	  - type: cyclone
//	    columns: 6
//	    path: /predict/cyclone
func ParseHazardTable(data []byte) (*HazardTable, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse hazard table: %w", err)
	}
	return NewHazardTable(f.Hazards...)
}

// LoadHazardTable reads a YAML hazard table from disk.
func LoadHazardTable(path string) (*HazardTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hazard table: %w", err)
	}
	return ParseHazardTable(data)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
