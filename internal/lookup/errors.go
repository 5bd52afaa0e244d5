package lookup

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
	"github.com/shpitdev/company-revenue-lookup/pkg/registry"
)

// ErrRevenueNotFound is returned when the upstream answered but no rule found a revenue figure.
var ErrRevenueNotFound = errors.New("CA non trouvé dans les bilans/profil financier")

const (
	msgMissingID    = "Missing id"
	msgNoData       = "Aucune donnée finances/bilans trouvée"
	msgUnauthorized = "Unauthorized for this endpoint"
)

// ValidationError is a malformed or missing request parameter. It is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return "invalid request"
	}
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StatusFor maps a lookup error to the HTTP status surfaced to callers.
func StatusFor(err error) int {
	var he *registry.HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrMissingToken):
		return http.StatusInternalServerError
	case errors.As(err, &he) && he.StatusCode != 0:
		return he.StatusCode
	case errors.Is(err, registry.ErrNoData), errors.Is(err, ErrRevenueNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrBadPayload):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message renders err as the user-facing error text. Secrets never reach the output.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		he *registry.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, registry.ErrMissingToken):
		return registry.ErrMissingToken.Error()
	case errors.As(err, &he):
		if he.Unauthorized() {
			return msgUnauthorized
		}
		if body := strings.TrimSpace(string(he.Body)); body != "" {
			return redact.Secrets(body)
		}
		return he.Status
	case errors.Is(err, registry.ErrNoData):
		return msgNoData
	case errors.Is(err, ErrRevenueNotFound):
		return ErrRevenueNotFound.Error()
	default:
		return redact.Secrets(err.Error())
	}
}
