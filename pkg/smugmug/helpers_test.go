package smugmug

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
	"smdl/pkg/retry"
)

// apiPage wraps a JSON payload the way the API browser does
func apiPage(payload string) string {
	return "<html><body><pre class=\"request\">GET</pre><pre>" + html.EscapeString(payload) + "</pre></body></html>"
}

// fakeFetcher serves canned payloads keyed by path and counts calls
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	failures map[string]error
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: map[string]string{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeFetcher) on(path, payload string) *fakeFetcher {
	f.payloads[path] = payload
	return f
}

func (f *fakeFetcher) fail(path string) *fakeFetcher {
	f.failures[path] = errs.Wrap(errs.ErrorTypeFetch, errs.New(errs.ErrorTypeTransport, "unexpected status").WithCode(500), "fetch failed").WithPath(path)
	return f
}

func (f *fakeFetcher) GetJSON(ctx context.Context, path string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err, ok := f.failures[path]; ok {
		return nil, err
	}
	payload, ok := f.payloads[path]
	if !ok {
		return nil, errs.New(errs.ErrorTypeFetch, "no route").WithPath(path)
	}
	return json.RawMessage(payload), nil
}

func (f *fakeFetcher) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// testServer is an httptest server with per-route handlers and hit counts
type testServer struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		routes: map[string]http.HandlerFunc{},
		hits:   map[string]int{},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		ts.mu.Lock()
		ts.hits[key]++
		handler, ok := ts.routes[key]
		ts.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) handle(path string, h http.HandlerFunc) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.routes[path] = h
}

func (ts *testServer) page(path, payload string) {
	ts.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, apiPage(payload))
	})
}

func (ts *testServer) hitCount(path string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hits[path]
}

func (ts *testServer) endpoints() Endpoints {
	return Endpoints{
		APIBaseURL: ts.URL,
		AccountURL: ts.URL + "/account/{username}",
	}
}

func newTestSession(t *testing.T, ts *testServer) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{Endpoints: ts.endpoints(), UserAgent: "smdl-test"}, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

// instantPolicy is the default 5-attempt policy without real sleeps
func instantPolicy() *retry.Policy {
	p := retry.DefaultPolicy()
	p.Logger = logger.NewNopLogger()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}
