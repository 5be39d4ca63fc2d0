package probe

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tdh8316/usernamescan/internal/platform"
)

// Evidence is what a probe observed. Status 0 means nothing was observed.
type Evidence struct {
	URL      string
	Status   int
	Location string
	Body     []byte
}

func (e Evidence) observed() bool {
	return e.Status != 0
}

// Classifier maps evidence to an outcome. Implementations are pure: the same
// handle and evidence always yield the same outcome.
type Classifier interface {
	Classify(handle string, ev Evidence) Outcome
}

type ClassifierFunc func(handle string, ev Evidence) Outcome

func (f ClassifierFunc) Classify(handle string, ev Evidence) Outcome {
	return f(handle, ev)
}

// StatusClassifier maps status codes 1:1. Anything unlisted is Unknown.
type StatusClassifier struct {
	Taken     []int
	Available []int
}

func (c StatusClassifier) Classify(_ string, ev Evidence) Outcome {
	switch {
	case !ev.observed():
		return Unknown
	case slices.Contains(c.Taken, ev.Status):
		return Taken
	case slices.Contains(c.Available, ev.Status):
		return Available
	}
	return Unknown
}

// JSONClassifier reads the canonical name at Path from a 200 JSON body.
// Non-200 answers mean the user does not exist.
type JSONClassifier struct {
	Path string
}

func (c JSONClassifier) Classify(handle string, ev Evidence) Outcome {
	if !ev.observed() {
		return Unknown
	}
	if ev.Status != http.StatusOK {
		return Available
	}
	if !gjson.ValidBytes(ev.Body) {
		return Unknown
	}
	v := gjson.GetBytes(ev.Body, c.Path)
	if v.Exists() && strings.EqualFold(v.String(), handle) {
		return Taken
	}
	return Available
}

// MarkerClassifier decides from text markers in a 200 body. 404 is always
// Available; other statuses are Unknown.
type MarkerClassifier struct {
	NotFound      []platform.Marker
	Found         []platform.Marker
	CaseSensitive bool
}

func (c MarkerClassifier) Classify(handle string, ev Evidence) Outcome {
	switch {
	case !ev.observed():
		return Unknown
	case ev.Status == http.StatusNotFound:
		return Available
	case ev.Status != http.StatusOK:
		return Unknown
	}
	return c.classifyBody(handle, ev.Body)
}

func (c MarkerClassifier) classifyBody(handle string, body []byte) Outcome {
	p := newPage(body)
	if p.any(c.NotFound, handle, false) {
		return Available
	}
	if len(c.Found) == 0 {
		return Taken
	}
	if p.any(c.Found, handle, !c.CaseSensitive) {
		return Taken
	}
	return Available
}

// defaultRedirectTargets are leading path segments that mean the platform
// sent us away from a missing profile.
var defaultRedirectTargets = []string{"login", "signin", "sign-in", "signup", "home", "explore", "accounts/login"}

// RedirectClassifier infers from the unfollowed response: a redirect to a
// login, home or root page means no profile. 200 bodies use marker rules.
// Targets are extra leading path segments, such as "/suspended".
type RedirectClassifier struct {
	Targets []string
	Markers MarkerClassifier
}

func (c RedirectClassifier) Classify(handle string, ev Evidence) Outcome {
	switch {
	case !ev.observed():
		return Unknown
	case ev.Status == http.StatusNotFound:
		return Available
	case ev.Status >= 300 && ev.Status < 400:
		if c.awayFromProfile(ev) {
			return Available
		}
		return Unknown
	case ev.Status == http.StatusOK:
		return c.Markers.classifyBody(handle, ev.Body)
	}
	return Unknown
}

func (c RedirectClassifier) awayFromProfile(ev Evidence) bool {
	if ev.Location == "" {
		return false
	}
	loc, err := url.Parse(ev.Location)
	if err != nil {
		return false
	}
	if ev.URL != "" {
		base, err := url.Parse(ev.URL)
		if err == nil {
			loc = base.ResolveReference(loc)
			// Canonicalisation of the profile path itself, e.g. case or a
			// trailing slash.
			if strings.EqualFold(strings.Trim(loc.Path, "/"), strings.Trim(base.Path, "/")) {
				return false
			}
		}
	}

	segs := pathSegments(loc.Path)
	if len(segs) == 0 {
		return true
	}
	for _, t := range c.Targets {
		if hasSegmentPrefix(segs, t) {
			return true
		}
	}
	for _, t := range defaultRedirectTargets {
		if hasSegmentPrefix(segs, t) {
			return true
		}
	}
	return false
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// hasSegmentPrefix reports whether target's segments lead segs, ignoring case.
func hasSegmentPrefix(segs []string, target string) bool {
	want := pathSegments(target)
	if len(want) == 0 || len(want) > len(segs) {
		return false
	}
	for i, w := range want {
		if !strings.EqualFold(segs[i], w) {
			return false
		}
	}
	return true
}
