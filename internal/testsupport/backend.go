package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// BackendRequest is one request received by a FakeBackend.
type BackendRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// FakeBackend is an httptest server standing in for the media backend.
// Routes are keyed "METHOD /escaped/path"; unknown routes answer 404.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []BackendRequest
}

// NewFakeBackend starts a fake backend and closes it on cleanup.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{routes: make(map[string]http.HandlerFunc)}
	fb.Server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the server root.
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// Handle registers a custom handler.
func (f *FakeBackend) Handle(route string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = handler
}

// Reply registers a fixed status and body.
func (f *FakeBackend) Reply(route string, status int, body string) {
	f.Handle(route, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Requests returns every request received so far.
func (f *FakeBackend) Requests() []BackendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]BackendRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Hits counts requests to one route.
func (f *FakeBackend) Hits(route string) int {
	count := 0
	for _, req := range f.Requests() {
		if req.Method+" "+req.Path == route {
			count++
		}
	}
	return count
}

// Last returns the newest request to route, or false when none arrived.
func (f *FakeBackend) Last(route string) (BackendRequest, bool) {
	reqs := f.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method+" "+reqs[i].Path == route {
			return reqs[i], true
		}
	}
	return BackendRequest{}, false
}

func (f *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	rec := BackendRequest{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	handler, ok := f.routes[rec.Method+" "+rec.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}
