package probe

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/usernamescan/internal/platform"
)

// Builder turns a probe spec into a classifier for one strategy tag.
type Builder func(d platform.Descriptor, spec platform.ProbeSpec) Classifier

var builders = map[platform.Strategy]Builder{
	platform.StrategyAPI: func(_ platform.Descriptor, spec platform.ProbeSpec) Classifier {
		return StatusClassifier{Taken: spec.TakenStatus, Available: spec.AvailableStatus}
	},
	platform.StrategyJSON: func(_ platform.Descriptor, spec platform.ProbeSpec) Classifier {
		return JSONClassifier{Path: spec.JSONPath}
	},
	platform.StrategyMarker: func(d platform.Descriptor, spec platform.ProbeSpec) Classifier {
		return markerClassifier(d, spec)
	},
	platform.StrategyRedirect: func(d platform.Descriptor, spec platform.ProbeSpec) Classifier {
		return RedirectClassifier{Targets: spec.RedirectTargets, Markers: markerClassifier(d, spec)}
	},
}

func markerClassifier(d platform.Descriptor, spec platform.ProbeSpec) MarkerClassifier {
	return MarkerClassifier{NotFound: spec.NotFound, Found: spec.Found, CaseSensitive: d.CaseSensitive}
}

// Registry maps platform ids to probers. It is built once and read-only.
type Registry struct {
	probers map[string]Prober
}

// NewRegistry builds a prober for every descriptor in tbl. rl may be nil
// when no descriptor uses the relay transport.
func NewRegistry(tbl *platform.Table, fetcher Fetcher, rl Relay, log logrus.FieldLogger) (*Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{probers: make(map[string]Prober, tbl.Len())}
	for _, d := range tbl.All() {
		p, err := build(d, fetcher, rl, log)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", d.ID, err)
		}
		r.probers[d.ID] = p
	}
	return r, nil
}

func build(d platform.Descriptor, fetcher Fetcher, rl Relay, log logrus.FieldLogger) (Prober, error) {
	primary, err := buildSpec(d, d.Probe, fetcher, rl, log)
	if err != nil {
		return nil, err
	}
	if d.Fallback == nil {
		return primary, nil
	}
	fallback, err := buildSpec(d, *d.Fallback, fetcher, rl, log)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return chain{primary, fallback}, nil
}

func buildSpec(d platform.Descriptor, spec platform.ProbeSpec, fetcher Fetcher, rl Relay, log logrus.FieldLogger) (Prober, error) {
	b, ok := builders[spec.Strategy]
	if !ok {
		return nil, fmt.Errorf("no builder for strategy %q", spec.Strategy)
	}

	var g Gatherer
	switch spec.Transport {
	case platform.TransportRelay:
		if rl == nil {
			return nil, fmt.Errorf("relay transport configured but no relay available")
		}
		g = relayGatherer{relay: rl}
	default:
		g = directGatherer{fetcher: fetcher}
	}

	return &specProber{
		platformID: d.ID,
		spec:       spec,
		gatherer:   g,
		classifier: b(d, spec),
		log:        log,
	}, nil
}

func (r *Registry) Lookup(id string) (Prober, bool) {
	p, ok := r.probers[id]
	return p, ok
}

func (r *Registry) Len() int {
	return len(r.probers)
}
