package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/usernamescan/internal/httpx"
	"github.com/tdh8316/usernamescan/internal/platform"
)

type stubRelay struct {
	calls atomic.Int32
	resp  *httpx.Response
}

func (s *stubRelay) Fetch(_ context.Context, _ string) (*httpx.Response, bool) {
	s.calls.Add(1)
	if s.resp == nil {
		return nil, false
	}
	return s.resp, true
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newFetcher(t *testing.T, timeout time.Duration) *httpx.Fetcher {
	t.Helper()
	client, err := httpx.NewClient(httpx.ClientConfig{})
	require.NoError(t, err)
	return httpx.NewFetcher(client, httpx.Config{Timeout: timeout})
}

func newTable(t *testing.T, ds ...platform.Descriptor) *platform.Table {
	t.Helper()
	tbl, err := platform.New("1.0.0", ds)
	require.NoError(t, err)
	return tbl
}

func TestRegistryCodeHostingAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/torvalds":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"login":"torvalds","id":1024025,"type":"User"}`))
		case "/users/slow":
			time.Sleep(300 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tbl := newTable(t, platform.Descriptor{
		ID:         "github",
		ProfileURL: "https://github.com/{}",
		Default:    platform.DefaultTaken,
		Probe: platform.ProbeSpec{
			Strategy:        platform.StrategyAPI,
			URL:             srv.URL + "/users/{}",
			TakenStatus:     []int{200},
			AvailableStatus: []int{404},
		},
	})

	reg, err := NewRegistry(tbl, newFetcher(t, 100*time.Millisecond), nil, nullLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	p, ok := reg.Lookup("github")
	require.True(t, ok)

	ctx := context.Background()
	assert.Equal(t, Taken, p.Probe(ctx, "torvalds"))
	assert.Equal(t, Available, p.Probe(ctx, "zzqwxyrandom123456"))
	assert.Equal(t, Unknown, p.Probe(ctx, "slow"))

	_, ok = reg.Lookup("gitlab")
	assert.False(t, ok)
}

func TestRegistryEscapesHandleInProbeURL(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		if r.URL.Path == "/users/torvalds" && r.URL.RawQuery == "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tbl := newTable(t, platform.Descriptor{
		ID:         "github",
		ProfileURL: "https://github.com/{}",
		Default:    platform.DefaultTaken,
		Probe: platform.ProbeSpec{
			Strategy:        platform.StrategyAPI,
			URL:             srv.URL + "/users/{}",
			TakenStatus:     []int{200},
			AvailableStatus: []int{404},
		},
	})
	reg, err := NewRegistry(tbl, newFetcher(t, time.Second), nil, nullLogger())
	require.NoError(t, err)
	p, _ := reg.Lookup("github")

	ctx := context.Background()
	cases := map[string]string{
		"torvalds#zzqwxy":   "/users/torvalds%23zzqwxy",
		"torvalds?x=1":      "/users/torvalds%3Fx=1",
		"../users/torvalds": "/users/..%2Fusers%2Ftorvalds",
	}
	for handle, wantPath := range cases {
		assert.Equal(t, Available, p.Probe(ctx, handle), handle)
		assert.Equal(t, wantPath, <-paths, handle)
	}

	assert.Equal(t, Taken, p.Probe(ctx, "torvalds"))
	assert.Equal(t, "/users/torvalds", <-paths)
}

func TestRegistryCodeHostingHTMLFallback(t *testing.T) {
	t.Parallel()

	var apiCalls, pageCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/users/") {
			apiCalls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		pageCalls.Add(1)
		switch strings.ToLower(r.URL.Path) {
		case "/torvalds":
			_, _ = w.Write([]byte(`<html><head><title>torvalds (Linus Torvalds) · GitHub</title></head></html>`))
		case "/zzqwxyrandom123456":
			_, _ = w.Write([]byte(`<html><head><title>Page not found · GitHub</title></head></html>`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	tbl := newTable(t, platform.Descriptor{
		ID:         "github",
		ProfileURL: "https://github.com/{}",
		Default:    platform.DefaultTaken,
		Probe: platform.ProbeSpec{
			Strategy:        platform.StrategyAPI,
			URL:             srv.URL + "/users/{}",
			TakenStatus:     []int{200},
			AvailableStatus: []int{404},
		},
		Fallback: &platform.ProbeSpec{
			Strategy: platform.StrategyMarker,
			URL:      srv.URL + "/{}",
			NotFound: []platform.Marker{{Kind: platform.MarkerContains, Value: "Page not found"}},
			Found:    []platform.Marker{{Kind: platform.MarkerTitle, Value: "{}"}},
		},
	})
	reg, err := NewRegistry(tbl, newFetcher(t, time.Second), nil, nullLogger())
	require.NoError(t, err)
	p, _ := reg.Lookup("github")

	ctx := context.Background()
	assert.Equal(t, Taken, p.Probe(ctx, "TorValds"))
	assert.Equal(t, Available, p.Probe(ctx, "zzqwxyrandom123456"))
	assert.Equal(t, Unknown, p.Probe(ctx, "throttled"))
	assert.Equal(t, int32(3), apiCalls.Load())
	assert.Equal(t, int32(3), pageCalls.Load())
}

func TestRegistryRedirectInference(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/someone/":
			_, _ = w.Write([]byte(`<script>{"username":"someone"}</script>`))
		case "/login":
			_, _ = w.Write([]byte(`"username":"ghost"`))
		default:
			http.Redirect(w, r, "/login", http.StatusFound)
		}
	}))
	defer srv.Close()

	tbl := newTable(t, platform.Descriptor{
		ID:         "instagram",
		ProfileURL: "https://www.instagram.com/{}/",
		Default:    platform.DefaultTaken,
		Probe: platform.ProbeSpec{
			Strategy: platform.StrategyRedirect,
			URL:      srv.URL + "/{}/",
			NotFound: []platform.Marker{{Kind: platform.MarkerContains, Value: "Sorry, this page isn't available"}},
			Found:    []platform.Marker{{Kind: platform.MarkerContains, Value: `"username":"{}"`}},
		},
	})

	reg, err := NewRegistry(tbl, newFetcher(t, time.Second), nil, nullLogger())
	require.NoError(t, err)
	p, _ := reg.Lookup("instagram")

	assert.Equal(t, Taken, p.Probe(context.Background(), "someone"))
	assert.Equal(t, Available, p.Probe(context.Background(), "ghost"))
}

func TestRegistryFallbackChain(t *testing.T) {
	t.Parallel()

	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		switch strings.TrimPrefix(r.URL.Path, "/usernames/") {
		case "ninja":
			w.WriteHeader(http.StatusOK)
		case "free":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	relayed := &stubRelay{resp: &httpx.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`<meta property="og:title" content="someone - Twitch">`),
	}}

	tbl := newTable(t, platform.Descriptor{
		ID:         "twitch",
		ProfileURL: "https://twitch.tv/{}",
		Default:    platform.DefaultTaken,
		Probe: platform.ProbeSpec{
			Strategy:        platform.StrategyAPI,
			URL:             srv.URL + "/usernames/{}",
			Method:          http.MethodHead,
			TakenStatus:     []int{200},
			AvailableStatus: []int{204},
		},
		Fallback: &platform.ProbeSpec{
			Strategy:  platform.StrategyMarker,
			URL:       "https://www.twitch.tv/{}",
			Transport: platform.TransportRelay,
			NotFound:  []platform.Marker{{Kind: platform.MarkerContains, Value: "content is unavailable"}},
			Found:     []platform.Marker{{Kind: platform.MarkerContains, Value: `content="{} - Twitch"`}},
		},
	})

	reg, err := NewRegistry(tbl, newFetcher(t, time.Second), relayed, nullLogger())
	require.NoError(t, err)
	p, _ := reg.Lookup("twitch")

	ctx := context.Background()
	assert.Equal(t, Taken, p.Probe(ctx, "ninja"))
	assert.Equal(t, Available, p.Probe(ctx, "free"))
	assert.Equal(t, int32(0), relayed.calls.Load())

	assert.Equal(t, Taken, p.Probe(ctx, "someone"))
	assert.Equal(t, int32(1), relayed.calls.Load())
	assert.Equal(t, int32(3), heads.Load())

	exhausted := &stubRelay{}
	reg, err = NewRegistry(tbl, newFetcher(t, time.Second), exhausted, nullLogger())
	require.NoError(t, err)
	p, _ = reg.Lookup("twitch")
	assert.Equal(t, Unknown, p.Probe(ctx, "someone"))
	assert.Equal(t, int32(1), exhausted.calls.Load())
}

func TestRegistryNeedsRelayForRelayTransport(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, platform.Descriptor{
		ID:         "behance",
		ProfileURL: "https://www.behance.net/{}",
		Default:    platform.DefaultAvailable,
		Probe: platform.ProbeSpec{
			Strategy:  platform.StrategyMarker,
			URL:       "https://www.behance.net/{}",
			Transport: platform.TransportRelay,
		},
	})

	_, err := NewRegistry(tbl, newFetcher(t, time.Second), nil, nullLogger())
	assert.Error(t, err)
}

func TestRegistryBuildsBuiltinTable(t *testing.T) {
	t.Parallel()

	tbl, err := platform.Builtin()
	require.NoError(t, err)

	reg, err := NewRegistry(tbl, newFetcher(t, time.Second), &stubRelay{}, nullLogger())
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), reg.Len())
	for _, id := range tbl.IDs() {
		_, ok := reg.Lookup(id)
		assert.True(t, ok, id)
	}
}
