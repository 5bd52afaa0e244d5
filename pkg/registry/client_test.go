package registry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shpitdev/company-revenue-lookup/internal/mockregistry"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/core"
	"github.com/shpitdev/company-revenue-lookup/pkg/registry"
)

func newClient(t *testing.T, srv *mockregistry.Server, token registry.TokenSource) *registry.Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := registry.DefaultConfig()
	cfg.BaseURL = ts.URL + mockregistry.BasePath
	c, err := registry.NewClient(cfg, token, ts.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchRevenue_FirstSuccessfulCandidateWins(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.RequireHeader("X-Authorization", "socapi tok")
	srv.Handle("entreprise/552100554/finances", http.StatusOK, `{"finances":[{"annee":2023,"ca":1000}]}`)
	srv.Handle("entreprise/552100554/profilfinancier", http.StatusOK, `{"should":"not be reached"}`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	body, err := c.FetchRevenue(context.Background(), "552100554")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "finances") {
		t.Fatalf("unexpected body: %s", body)
	}

	calls := srv.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls (bilans 404, finances 200), got %d", len(calls))
	}
	if calls[0].Path != "/api/v1/entreprise/552100554/bilans" || calls[1].Path != "/api/v1/entreprise/552100554/finances" {
		t.Fatalf("unexpected probe order: %#v", calls)
	}
	if got := calls[0].Header.Get("Accept"); got != "application/json" {
		t.Fatalf("unexpected Accept header: %q", got)
	}
}

func TestFetchRevenue_UnauthorizedShortCircuits(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.RequireHeader("X-Authorization", "socapi right")
	srv.Handle("entreprise/552100554/finances", http.StatusOK, `{}`)

	c := newClient(t, srv, registry.StaticToken("wrong"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	var he *registry.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized || !he.Unauthorized() {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if n := len(srv.Calls()); n != 1 {
		t.Fatalf("expected a single upstream call, got %d", n)
	}
}

func TestFetchRevenue_ForbiddenShortCircuits(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.Handle("entreprise/552100554/bilans", http.StatusForbidden, `{"error":"offer"}`)
	srv.Handle("entreprise/552100554/finances", http.StatusOK, `{}`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	if code, ok := registry.StatusCode(err); !ok || code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if n := len(srv.Calls()); n != 1 {
		t.Fatalf("expected a single upstream call, got %d", n)
	}
}

func TestFetchRevenue_AllNotFound(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	c := newClient(t, srv, registry.StaticToken("tok"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	if !errors.Is(err, registry.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if n := len(srv.Calls()); n != len(registry.DefaultConfig().RevenuePaths) {
		t.Fatalf("expected every candidate probed, got %d calls", n)
	}
}

func TestFetchRevenue_ReturnsLastFailure(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.Handle("entreprise/552100554/bilans", http.StatusBadGateway, `upstream down`)
	srv.Handle("entreprise/552100554/finances", http.StatusOK, `not json`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	if !errors.Is(err, registry.ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload as last failure, got %v", err)
	}
}

func TestFetchRevenue_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.Handle("entreprise/552100554/bilans", http.StatusServiceUnavailable, `{"error":"busy"}`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	var lte *core.LimitedTransientError
	if !errors.As(err, &lte) || lte.MaxExtraRetries() != 1 {
		t.Fatalf("expected capped transient error, got %v", err)
	}
	if code, ok := registry.StatusCode(err); !ok || code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 to be preserved, got %v", err)
	}
}

func TestFetchRevenue_RateLimitedIsTransient(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.Handle("entreprise/552100554/bilans", http.StatusTooManyRequests, `{"error":"slow down"}`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	var te *core.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestFetchRevenue_MissingToken(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	c := newClient(t, srv, registry.StaticToken(""))
	_, err := c.FetchRevenue(context.Background(), "552100554")
	if !errors.Is(err, registry.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Fatalf("expected no upstream call, got %d", n)
	}
}

func TestFetchRevenue_RejectsReservedCharacters(t *testing.T) {
	t.Parallel()

	c := newClient(t, mockregistry.New(), registry.StaticToken("tok"))
	if _, err := c.FetchRevenue(context.Background(), "../admin"); err == nil {
		t.Fatalf("expected error for path-like identifier")
	}
}

func TestFetchProfile_PassesThroughStatus(t *testing.T) {
	t.Parallel()

	srv := mockregistry.New()
	srv.Handle("entreprise/552100554", http.StatusOK, `{"denomination":"ACME"}`)

	c := newClient(t, srv, registry.StaticToken("tok"))
	status, body, err := c.FetchProfile(context.Background(), "552100554")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK || string(body) != `{"denomination":"ACME"}` {
		t.Fatalf("unexpected response: %d %s", status, body)
	}

	status, _, err = c.FetchProfile(context.Background(), "000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 passthrough, got %d", status)
	}
}

func TestAuthSchemeFromConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  header: X-API-KEY\nrevenue_paths:\n  - entreprise/{id}/bilans\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := registry.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	srv := mockregistry.New()
	srv.RequireHeader("X-API-KEY", "tok")
	srv.Handle("entreprise/552100554/bilans", http.StatusOK, `{"bilans":[]}`)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfg.BaseURL = ts.URL + mockregistry.BasePath
	c, err := registry.NewClient(cfg, registry.StaticToken("tok"), ts.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.FetchRevenue(context.Background(), "552100554"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
