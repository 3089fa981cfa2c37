// Package testhelpers provides stub servers shared by tests that exercise the full
// client → proxy stack without reaching the real provider.
package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// OneCallBody is a minimal successful provider response for Kansas City.
const OneCallBody = `{"lat":39.1,"lon":-94.6,"timezone":"America/Chicago","current":{"dt":1709665620,"temp":72.5,"humidity":40,"wind_speed":5}}`

// Stub is an httptest server that replies with a fixed status and body and records the
// query of every request it receives.
type Stub struct {
	server *httptest.Server

	mu      sync.Mutex
	status  int
	body    string
	queries []url.Values
}

// NewStub starts a Stub that is closed when t finishes.
func NewStub(t testing.TB, status int, body string) *Stub {
	t.Helper()
	s := &Stub{status: status, body: body}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// NewOneCallStub starts a Stub answering 200 with OneCallBody.
func NewOneCallStub(t testing.TB) *Stub {
	return NewStub(t, http.StatusOK, OneCallBody)
}

func (s *Stub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	status, body := s.status, s.body
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Respond changes the reply for subsequent requests.
func (s *Stub) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

// URL returns the stub's base URL.
func (s *Stub) URL() string {
	return s.server.URL
}

// Calls returns how many requests the stub has served.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// LastQuery returns the query of the most recent request, or nil if none arrived.
func (s *Stub) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}
