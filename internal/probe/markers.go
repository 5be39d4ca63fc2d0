package probe

import (
	"bytes"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dlclark/regexp2"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/usernamescan/internal/platform"
)

// regexCache holds compiled regex markers keyed by expanded expression and
// options. Invalid expressions are remembered so they fail fast.
type regexCache struct {
	ok  sync.Map // key -> *regexp2.Regexp
	bad sync.Map // key -> error
}

var markerRegexps regexCache

func (c *regexCache) get(expr string, opts regexp2.RegexOptions) (*regexp2.Regexp, error) {
	key := expr
	if opts&regexp2.IgnoreCase != 0 {
		key = "(?i)" + expr
	}
	if v, ok := c.ok.Load(key); ok {
		return v.(*regexp2.Regexp), nil
	}
	if v, ok := c.bad.Load(key); ok {
		return nil, v.(error)
	}

	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		c.bad.Store(key, err)
		return nil, err
	}
	c.ok.Store(key, re)
	return re, nil
}

// page is a lazily parsed view of a response body shared by the markers
// evaluated against it.
type page struct {
	body  []byte
	text  string
	lower string
	title *string
}

func newPage(body []byte) *page {
	return &page{body: body, text: string(body)}
}

func (p *page) lowered() string {
	if p.lower == "" && p.text != "" {
		p.lower = strings.ToLower(p.text)
	}
	return p.lower
}

func (p *page) pageTitle() string {
	if p.title != nil {
		return *p.title
	}
	t := ""
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body)); err == nil {
		t = strings.TrimSpace(doc.Find("title").First().Text())
	}
	p.title = &t
	return t
}

// match evaluates one marker. fold makes contains and regex markers ignore
// case; title and json markers always do.
func (p *page) match(m platform.Marker, handle string, fold bool) bool {
	switch m.Kind {
	case platform.MarkerTitle:
		want := strings.ToLower(platform.Expand(m.Value, handle))
		return strings.Contains(strings.ToLower(p.pageTitle()), want)

	case platform.MarkerJSON:
		if !gjson.ValidBytes(p.body) {
			return false
		}
		v := gjson.GetBytes(p.body, m.Value)
		return v.Exists() && strings.EqualFold(v.String(), handle)

	case platform.MarkerRegex:
		expr := strings.ReplaceAll(m.Value, "{lower}", regexp2.Escape(strings.ToLower(handle)))
		expr = strings.ReplaceAll(expr, "{}", regexp2.Escape(handle))
		var opts regexp2.RegexOptions
		if fold {
			opts |= regexp2.IgnoreCase
		}
		re, err := markerRegexps.get(expr, opts)
		if err != nil {
			return false
		}
		ok, err := re.MatchString(p.text)
		return err == nil && ok

	default:
		want := platform.Expand(m.Value, handle)
		if fold {
			return strings.Contains(p.lowered(), strings.ToLower(want))
		}
		return strings.Contains(p.text, want)
	}
}

func (p *page) any(markers []platform.Marker, handle string, fold bool) bool {
	for _, m := range markers {
		if p.match(m, handle, fold) {
			return true
		}
	}
	return false
}
