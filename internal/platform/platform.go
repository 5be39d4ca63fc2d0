// Package platform holds the immutable descriptor table of supported
// platforms: URL templates, evidence markers, probe shape and the
// conservative default applied when evidence stays inconclusive.
package platform

import (
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	StrategyAPI      Strategy = "api"
	StrategyJSON     Strategy = "json"
	StrategyRedirect Strategy = "redirect"
	StrategyMarker   Strategy = "marker"
)

type Transport string

const (
	TransportDirect Transport = "direct"
	TransportRelay  Transport = "relay"
)

// Conservative defaults.
const (
	DefaultTaken     = "taken"
	DefaultAvailable = "available"
)

type MarkerKind string

const (
	MarkerContains MarkerKind = "contains"
	MarkerTitle    MarkerKind = "title"
	MarkerJSON     MarkerKind = "json"
	MarkerRegex    MarkerKind = "regex"
)

// Marker is one piece of textual evidence. A bare YAML string decodes to a
// contains marker.
type Marker struct {
	Kind  MarkerKind `yaml:"kind" json:"kind"`
	Value string     `yaml:"value" json:"value"`
}

func (m *Marker) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m.Kind = MarkerContains
		return node.Decode(&m.Value)
	}
	type plain Marker
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Kind == "" {
		p.Kind = MarkerContains
	}
	*m = Marker(p)
	return nil
}

// ProbeSpec describes how evidence is gathered and which strategy classifies it.
type ProbeSpec struct {
	Strategy  Strategy  `yaml:"strategy"`
	URL       string    `yaml:"url"`
	Method    string    `yaml:"method"`
	Transport Transport `yaml:"transport"`

	NotFound []Marker `yaml:"not_found"`
	Found    []Marker `yaml:"found"`

	TakenStatus     []int `yaml:"taken_status"`
	AvailableStatus []int `yaml:"available_status"`

	JSONPath string `yaml:"json_path"`

	// RedirectTargets are leading Location path segments, such as
	// "/suspended", that mean "no such profile". Login, home and the
	// platform root are always included.
	RedirectTargets []string `yaml:"redirect_targets"`
}

func (p ProbeSpec) Expand(handle string) string {
	return ExpandURL(p.URL, handle)
}

type Descriptor struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	ProfileURL string `yaml:"profile_url"`
	SignupURL  string `yaml:"signup_url"`

	// Default is the outcome used when two attempts stay inconclusive.
	Default       string `yaml:"default"`
	CaseSensitive bool   `yaml:"case_sensitive"`

	// Sample handles for live validation.
	Claimed   string `yaml:"claimed"`
	Unclaimed string `yaml:"unclaimed"`

	Probe    ProbeSpec  `yaml:"probe"`
	Fallback *ProbeSpec `yaml:"fallback"`
}

func (d Descriptor) Profile(handle string) string {
	return ExpandURL(d.ProfileURL, handle)
}

func (d Descriptor) Signup(handle string) string {
	return ExpandURL(d.SignupURL, handle)
}

// UsesRelay reports whether any probe of d goes through the relay chain.
func (d Descriptor) UsesRelay() bool {
	if d.Probe.Transport == TransportRelay {
		return true
	}
	return d.Fallback != nil && d.Fallback.Transport == TransportRelay
}

// Expand substitutes "{}" with handle and "{lower}" with its lower-cased form.
func Expand(tmpl, handle string) string {
	out := strings.ReplaceAll(tmpl, "{lower}", strings.ToLower(handle))
	return strings.ReplaceAll(out, "{}", handle)
}

// ExpandURL is Expand for URL templates: the handle is escaped as a single
// path segment, so "/", "?" and "#" in it never change the resource.
func ExpandURL(tmpl, handle string) string {
	out := strings.ReplaceAll(tmpl, "{lower}", escapeSegment(strings.ToLower(handle)))
	return strings.ReplaceAll(out, "{}", escapeSegment(handle))
}

func escapeSegment(s string) string {
	if s == "." || s == ".." {
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}
