package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
)

var (
	// ErrNoData is returned when every candidate resource answered not-found.
	ErrNoData = errors.New("no finances/bilans data found")
	// ErrBadPayload is returned when a successful response body is not JSON.
	ErrBadPayload = errors.New("upstream returned a non-JSON body")
)

// HTTPError is a non-2xx registry response.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string

	// Body is the raw upstream body, kept for status passthrough to trusted callers.
	// Never log it; use Snippet.
	Body []byte

	// Snippet is a redacted, truncated hint of Body.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "registry http error"
	}
	parts := []string{
		fmt.Sprintf("registry api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Unauthorized reports whether the credential was rejected for this resource.
func (e *HTTPError) Unauthorized() bool {
	return e != nil && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{
		Op:   op,
		Body: body,
	}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	h.Snippet = redactAndTruncate(body)
	return h
}

// StatusCode extracts the upstream status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode != 0 {
		return he.StatusCode, true
	}
	return 0, false
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
