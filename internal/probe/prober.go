package probe

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/usernamescan/internal/httpx"
	"github.com/tdh8316/usernamescan/internal/platform"
)

// Prober performs one attempt for a handle. Network failures are absorbed as
// Unknown; a Prober never returns an error.
type Prober interface {
	Probe(ctx context.Context, handle string) Outcome
}

type ProberFunc func(ctx context.Context, handle string) Outcome

func (f ProberFunc) Probe(ctx context.Context, handle string) Outcome {
	return f(ctx, handle)
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts ...httpx.Option) (*httpx.Response, error)
}

type Relay interface {
	Fetch(ctx context.Context, target string) (*httpx.Response, bool)
}

// Gatherer fetches the evidence for an expanded probe URL.
type Gatherer interface {
	Gather(ctx context.Context, spec platform.ProbeSpec, target string) (Evidence, error)
}

type directGatherer struct {
	fetcher Fetcher
}

func (g directGatherer) Gather(ctx context.Context, spec platform.ProbeSpec, target string) (Evidence, error) {
	resp, err := g.fetcher.Fetch(ctx, target, httpx.WithMethod(spec.Method))
	if err != nil {
		return Evidence{URL: target}, err
	}
	return Evidence{URL: target, Status: resp.StatusCode, Location: resp.Location(), Body: resp.Body}, nil
}

type relayGatherer struct {
	relay Relay
}

func (g relayGatherer) Gather(ctx context.Context, _ platform.ProbeSpec, target string) (Evidence, error) {
	resp, ok := g.relay.Fetch(ctx, target)
	if !ok {
		return Evidence{URL: target}, errRelayExhausted
	}
	return Evidence{URL: target, Status: resp.StatusCode, Body: resp.Body}, nil
}

type relayError string

func (e relayError) Error() string { return string(e) }

const errRelayExhausted = relayError("all relays failed")

type specProber struct {
	platformID string
	spec       platform.ProbeSpec
	gatherer   Gatherer
	classifier Classifier
	log        logrus.FieldLogger
}

func (p *specProber) Probe(ctx context.Context, handle string) Outcome {
	target := p.spec.Expand(handle)
	log := p.log.WithFields(logrus.Fields{"platform": p.platformID, "handle": handle, "strategy": p.spec.Strategy})

	ev, err := p.gatherer.Gather(ctx, p.spec, target)
	if err != nil {
		log.WithError(err).Debug("no evidence")
		return Unknown
	}

	out := p.classifier.Classify(handle, ev)
	log.WithFields(logrus.Fields{"status": ev.Status, "outcome": out}).Debug("classified")
	return out
}

// chain tries each prober in turn until one is definite.
type chain []Prober

func (c chain) Probe(ctx context.Context, handle string) Outcome {
	for _, p := range c {
		if out := p.Probe(ctx, handle); out.Definite() {
			return out
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Unknown
}
