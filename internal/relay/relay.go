// Package relay retries a fetch through third-party forwarding endpoints
// when a platform blocks direct requests.
package relay

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/usernamescan/internal/httpx"
)

// DefaultEndpoints are tried in order. {url} is replaced by the query-escaped target.
var DefaultEndpoints = []string{
	"https://api.allorigins.win/raw?url={url}",
	"https://corsproxy.io/?url={url}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

// Fetcher is the subset of *httpx.Fetcher the relay needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts ...httpx.Option) (*httpx.Response, error)
}

// Endpoint wraps a target URL into a relay URL.
type Endpoint func(target string) string

// TemplateEndpoint builds an Endpoint from a "{url}" template.
func TemplateEndpoint(tmpl string) Endpoint {
	return func(target string) string {
		return strings.ReplaceAll(tmpl, "{url}", url.QueryEscape(target))
	}
}

type Relay struct {
	fetcher   Fetcher
	endpoints []Endpoint
	log       logrus.FieldLogger
}

func New(fetcher Fetcher, templates []string, log logrus.FieldLogger) *Relay {
	if len(templates) == 0 {
		templates = DefaultEndpoints
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	eps := make([]Endpoint, 0, len(templates))
	for _, t := range templates {
		eps = append(eps, TemplateEndpoint(t))
	}
	return &Relay{fetcher: fetcher, endpoints: eps, log: log}
}

func (r *Relay) Len() int {
	return len(r.endpoints)
}

// Fetch returns the first relay response with status 200 or 404. ok is false
// when every relay failed, which callers treat as "no evidence".
func (r *Relay) Fetch(ctx context.Context, target string) (resp *httpx.Response, ok bool) {
	for i, ep := range r.endpoints {
		if ctx.Err() != nil {
			return nil, false
		}

		relayURL := ep(target)
		res, err := r.fetcher.Fetch(ctx, relayURL)
		if err != nil {
			r.log.WithFields(logrus.Fields{"relay": i, "target": target}).WithError(err).Debug("relay failed")
			continue
		}
		if res.StatusCode == http.StatusOK || res.StatusCode == http.StatusNotFound {
			return res, true
		}
		r.log.WithFields(logrus.Fields{"relay": i, "target": target, "status": res.StatusCode}).Debug("relay unusable status")
	}
	return nil, false
}
