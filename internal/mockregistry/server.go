package mockregistry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// BasePath is the prefix the mock serves under; clients use <server URL>+BasePath.
const BasePath = "/api/v1"

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Header http.Header
}

// Response is a canned reply for one resource path.
type Response struct {
	Status int
	Body   []byte
}

// Server implements a minimal registry-like API surface: canned JSON per resource path,
// 404 for everything else.
type Server struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]Response

	authHeader string
	authValue  string
	latency    time.Duration

	inFlight    int
	maxInFlight int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		responses: make(map[string]Response),
	}
}

// Handle registers a response for a resource path relative to BasePath,
// e.g. "entreprise/552100554/bilans".
func (s *Server) Handle(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[normalizePath(path)] = Response{Status: status, Body: []byte(body)}
}

// HandleJSON is Handle with a JSON-encoded body.
func (s *Server) HandleJSON(path string, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Handle(path, status, string(b))
	return nil
}

// RequireHeader rejects requests whose header does not equal value with 401.
// An empty name disables the check.
func (s *Server) RequireHeader(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authHeader = strings.TrimSpace(name)
	s.authValue = value
}

// SetLatency delays every response, to exercise concurrency and timeouts.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// LoadDir registers every JSON file in dir. "<id>.json" becomes the profile resource
// entreprise/<id>; "<id>.<resource>.json" becomes entreprise/<id>/<resource>.
func (s *Server) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read mock dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return n, fmt.Errorf("read %s: %w", name, err)
		}
		stem := strings.TrimSuffix(name, ".json")
		id, resource, _ := strings.Cut(stem, ".")
		path := "entreprise/" + id
		if resource != "" {
			path += "/" + resource
		}
		s.Handle(path, http.StatusOK, string(b))
		n++
	}
	return n, nil
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(BasePath+"/", s.serve)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// MaxInFlight returns the highest number of requests observed in flight at once.
func (s *Server) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	latency := s.latency
	authHeader, authValue := s.authHeader, s.authValue
	resp, ok := s.responses[normalizePath(strings.TrimPrefix(r.URL.Path, BasePath))]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if authHeader != "" && r.Header.Get(authHeader) != authValue {
		writeJSON(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		return
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if json.Valid(resp.Body) {
		writeJSON(w, status, string(resp.Body))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func normalizePath(p string) string {
	return strings.Trim(p, "/")
}
