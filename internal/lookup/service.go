package lookup

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shpitdev/company-revenue-lookup/pkg/identifier"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
	"github.com/shpitdev/company-revenue-lookup/pkg/revenue"
)

// Fetcher is the upstream registry surface the service needs.
type Fetcher interface {
	FetchRevenue(ctx context.Context, id string) ([]byte, error)
	FetchProfile(ctx context.Context, id string) (int, []byte, error)
}

// Service resolves identifiers to revenue facts and company profiles. It is the single
// path every entry point (HTTP, batch, CLI) goes through.
type Service struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewService builds a Service. A nil logger disables logging.
func NewService(fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, logger: logger}
}

// Revenue classifies raw, fetches the first available financial payload and extracts the
// latest revenue figure from it.
func (s *Service) Revenue(ctx context.Context, raw string) (revenue.Fact, error) {
	id, err := parse(raw)
	if err != nil {
		return revenue.Fact{}, err
	}
	body, err := s.fetcher.FetchRevenue(ctx, id.Normalized)
	if err != nil {
		s.logger.Debug("revenue fetch failed",
			zap.String("id", id.Normalized),
			zap.String("kind", string(id.Kind)),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return revenue.Fact{}, err
	}
	fact, ok := revenue.Extract(body)
	if !ok {
		return revenue.Fact{}, fmt.Errorf("%w (%s)", ErrRevenueNotFound, id.Normalized)
	}
	s.logger.Debug("revenue resolved",
		zap.String("id", id.Normalized),
		zap.Int("year", fact.Year),
		zap.String("source", string(fact.Source)),
	)
	return fact, nil
}

// Profile returns the upstream legal-information resource for raw, status and body
// unchanged.
func (s *Service) Profile(ctx context.Context, raw string) (int, []byte, error) {
	id, err := parse(raw)
	if err != nil {
		return 0, nil, err
	}
	return s.fetcher.FetchProfile(ctx, id.Normalized)
}

func parse(raw string) (identifier.Identifier, error) {
	if strings.TrimSpace(raw) == "" {
		return identifier.Identifier{}, &ValidationError{Message: msgMissingID}
	}
	id := identifier.Classify(raw)
	if !id.Valid() {
		return id, &ValidationError{Message: id.Hint()}
	}
	return id, nil
}
