package platform

import (
	_ "embed"
	"net/http"
	"os"
	"strings"

	version "github.com/mcuadros/go-version"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Table schema versions this build understands: [MinSchemaVersion, MaxSchemaVersion).
const (
	MinSchemaVersion = "1.0.0"
	MaxSchemaVersion = "2.0.0"
)

//go:embed platforms.yaml
var builtin []byte

var (
	ErrDuplicateID       = errors.New("duplicate platform id")
	ErrUnsupportedSchema = errors.New("unsupported platform table version")
)

// Table is the ordered, read-only set of configured platforms.
type Table struct {
	version   string
	platforms []Descriptor
	index     map[string]int
}

type tableFile struct {
	Version   string       `yaml:"version"`
	Platforms []Descriptor `yaml:"platforms"`
}

// Builtin parses the table embedded in the binary.
func Builtin() (*Table, error) {
	return Parse(builtin)
}

// LoadFile parses a replacement table from disk.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read platform table")
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "platform table %s", path)
	}
	return t, nil
}

func Parse(raw []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}

	if f.Version == "" || !version.Compare(f.Version, MinSchemaVersion, ">=") || !version.Compare(f.Version, MaxSchemaVersion, "<") {
		return nil, errors.Wrapf(ErrUnsupportedSchema, "got %q, want >= %s and < %s", f.Version, MinSchemaVersion, MaxSchemaVersion)
	}

	return New(f.Version, f.Platforms)
}

// New validates descriptors, fills defaults and builds the lookup index.
func New(schema string, descriptors []Descriptor) (*Table, error) {
	t := &Table{
		version:   schema,
		platforms: make([]Descriptor, 0, len(descriptors)),
		index:     make(map[string]int, len(descriptors)),
	}

	for i, d := range descriptors {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, errors.Errorf("platform #%d: missing id", i)
		}
		if _, dup := t.index[d.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "%q", d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		if err := validate(&d); err != nil {
			return nil, errors.Wrapf(err, "platform %q", d.ID)
		}
		t.index[d.ID] = len(t.platforms)
		t.platforms = append(t.platforms, d)
	}

	if len(t.platforms) == 0 {
		return nil, errors.New("platform table is empty")
	}
	return t, nil
}

func validate(d *Descriptor) error {
	if d.ProfileURL == "" {
		return errors.New("missing profile_url")
	}
	switch d.Default {
	case DefaultTaken, DefaultAvailable:
	default:
		return errors.Errorf("default must be %q or %q, got %q", DefaultTaken, DefaultAvailable, d.Default)
	}
	if err := validateProbe(&d.Probe); err != nil {
		return errors.Wrap(err, "probe")
	}
	if d.Fallback != nil {
		if err := validateProbe(d.Fallback); err != nil {
			return errors.Wrap(err, "fallback")
		}
	}
	return nil
}

func validateProbe(p *ProbeSpec) error {
	if p.URL == "" {
		return errors.New("missing url")
	}
	if p.Method == "" {
		p.Method = http.MethodGet
	}
	p.Method = strings.ToUpper(p.Method)
	if p.Transport == "" {
		p.Transport = TransportDirect
	}
	if p.Transport != TransportDirect && p.Transport != TransportRelay {
		return errors.Errorf("unknown transport %q", p.Transport)
	}

	switch p.Strategy {
	case StrategyAPI:
		if len(p.TakenStatus) == 0 || len(p.AvailableStatus) == 0 {
			return errors.New("api strategy needs taken_status and available_status")
		}
	case StrategyJSON:
		if p.JSONPath == "" {
			return errors.New("json strategy needs json_path")
		}
	case StrategyRedirect, StrategyMarker:
	default:
		return errors.Errorf("unknown strategy %q", p.Strategy)
	}

	if p.Transport == TransportRelay && p.Strategy != StrategyMarker {
		return errors.Errorf("relay transport only carries status and body; %s strategy needs direct", p.Strategy)
	}
	if p.Transport == TransportRelay && p.Method != http.MethodGet {
		return errors.New("relay transport only supports GET")
	}

	for _, m := range append(append([]Marker(nil), p.NotFound...), p.Found...) {
		switch m.Kind {
		case MarkerContains, MarkerTitle, MarkerJSON, MarkerRegex:
		default:
			return errors.Errorf("unknown marker kind %q", m.Kind)
		}
		if m.Value == "" {
			return errors.New("empty marker value")
		}
	}
	return nil
}

func (t *Table) Version() string { return t.version }

func (t *Table) Len() int { return len(t.platforms) }

// All returns a copy of the descriptors in table order.
func (t *Table) All() []Descriptor {
	return append([]Descriptor(nil), t.platforms...)
}

func (t *Table) IDs() []string {
	ids := make([]string, len(t.platforms))
	for i, d := range t.platforms {
		ids[i] = d.ID
	}
	return ids
}

func (t *Table) Lookup(id string) (Descriptor, bool) {
	i, ok := t.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return t.platforms[i], true
}

// Select returns a table restricted to ids (matched case-insensitively),
// kept in table order, plus the ids that matched nothing. An empty
// selection returns t itself.
func (t *Table) Select(ids []string) (*Table, []string) {
	if len(ids) == 0 {
		return t, nil
	}

	lut := make(map[string]string, len(t.platforms))
	for _, d := range t.platforms {
		lut[strings.ToLower(d.ID)] = d.ID
	}

	want := make(map[string]bool, len(ids))
	var unknown []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if actual, ok := lut[strings.ToLower(id)]; ok {
			want[actual] = true
		} else {
			unknown = append(unknown, id)
		}
	}

	sub := &Table{version: t.version, index: make(map[string]int, len(want))}
	for _, d := range t.platforms {
		if want[d.ID] {
			sub.index[d.ID] = len(sub.platforms)
			sub.platforms = append(sub.platforms, d)
		}
	}
	return sub, unknown
}
