package registry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/core"
)

// Client performs authenticated GETs against the business-registry API.
type Client struct {
	baseURL *url.URL
	cfg     Config
	token   TokenSource
	http    *http.Client
}

// NewClient constructs a client for cfg. token is consulted on every request; a nil
// source reads the credential from the environment.
func NewClient(cfg Config, token TokenSource, hc *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc, err = newHTTPClient(cfg.CAPath)
		if err != nil {
			return nil, err
		}
	}
	if token == nil {
		token = EnvToken
	}
	return &Client{
		baseURL: base,
		cfg:     cfg,
		token:   token,
		http:    hc,
	}, nil
}

// FetchRevenue returns the first financial payload found for id.
//
// Candidate resources are probed in configuration order. A 2xx JSON response stops the
// probe. 401/403 stop immediately with an *HTTPError. 404 moves on to the next candidate.
// Other failures are remembered while probing continues; if nothing succeeds the last of
// them is returned, or ErrNoData when every candidate was not-found.
func (c *Client) FetchRevenue(ctx context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, tmpl := range c.cfg.RevenuePaths {
		resp, body, err := c.get(ctx, token, expandPath(tmpl, id))
		if err != nil {
			return nil, err
		}
		op := "revenue:" + strings.ReplaceAll(tmpl, idPlaceholder, "")
		switch {
		case resp.StatusCode/100 == 2:
			if json.Valid(body) {
				return body, nil
			}
			lastErr = fmt.Errorf("%w (%s)", ErrBadPayload, op)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, newHTTPError(op, resp, body)
		case resp.StatusCode == http.StatusNotFound:
			continue
		default:
			lastErr = classifyStatus(newHTTPError(op, resp, body))
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w for %s", ErrNoData, id)
}

// FetchProfile returns the legal-information resource for id with its upstream status.
// Non-2xx statuses are not errors; err is set only for configuration or transport failures.
func (c *Client) FetchProfile(ctx context.Context, id string) (int, []byte, error) {
	if err := checkID(id); err != nil {
		return 0, nil, err
	}
	token, err := c.token()
	if err != nil {
		return 0, nil, err
	}
	resp, body, err := c.get(ctx, token, expandPath(c.cfg.ProfilePath, id))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) get(ctx context.Context, token, relPath string) (*http.Response, []byte, error) {
	u := c.resolve(relPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set(c.cfg.Auth.Header, c.cfg.Auth.Value(token))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, classifyTransport(fmt.Errorf("fetch %s: %w", u.Path, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransport(fmt.Errorf("read %s: %w", u.Path, err))
	}
	return resp, b, nil
}

func (c *Client) resolve(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return c.baseURL.ResolveReference(rel)
}

func expandPath(tmpl, id string) string {
	return strings.ReplaceAll(tmpl, idPlaceholder, id)
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("identifier is required")
	}
	if strings.ContainsAny(id, "/?#%") {
		return fmt.Errorf("identifier %q contains reserved characters", id)
	}
	return nil
}

// serverErrorRetries caps retries of 5xx answers; 429 uses the worker's full budget.
const serverErrorRetries = 1

// classifyStatus marks rate-limit and server failures as retryable.
func classifyStatus(he *HTTPError) error {
	switch {
	case he.StatusCode == http.StatusTooManyRequests:
		return &core.TransientError{Err: he}
	case he.StatusCode/100 == 5:
		return &core.LimitedTransientError{Err: he, ExtraRetries: serverErrorRetries}
	default:
		return he
	}
}

func classifyTransport(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: err}
	}
	return err
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("registry base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse registry base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("registry base URL must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(caPath string) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read registry CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse registry CA bundle: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}
