package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/company-revenue-lookup/internal/batch"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/core"
	localio "github.com/shpitdev/company-revenue-lookup/pkg/pipeline/io/local"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
	"github.com/shpitdev/company-revenue-lookup/pkg/revenue"
)

// LocalRun describes one spreadsheet batch on the local filesystem.
type LocalRun struct {
	InputPath string
	// OutputPath defaults to "<base>_with_CA.<ext>" next to the input.
	OutputPath string
	// Column names the identifier column; empty auto-detects it.
	Column string
	Opts   batch.Options
}

// DefaultOutputPath places the augmented file next to the input.
func DefaultOutputPath(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), localio.OutputName(filepath.Base(inputPath)))
}

// RunLocal reads a local spreadsheet, resolves the revenue of every row and writes the
// augmented spreadsheet. Row failures are written into the output, not returned.
func RunLocal(ctx context.Context, run LocalRun, fetch batch.RevenueFunc, logger *zap.Logger) (batch.Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	log := logger.With(zap.String("run", runID))
	runStart := time.Now()

	outputPath := strings.TrimSpace(run.OutputPath)
	if outputPath == "" {
		outputPath = DefaultOutputPath(run.InputPath)
	}

	inF, err := os.Open(run.InputPath)
	if err != nil {
		return batch.Summary{}, err
	}
	defer func() {
		_ = inF.Close()
	}()

	table, err := localio.ReadTable(inF, run.InputPath)
	if err != nil {
		return batch.Summary{}, err
	}
	column := localio.DetectIdentifierColumn(table.Header)
	if name := strings.TrimSpace(run.Column); name != "" {
		column = localio.ColumnIndex(table.Header, name)
		if column < 0 {
			return batch.Summary{}, fmt.Errorf("column %q not found in %s", name, filepath.Base(run.InputPath))
		}
	}
	if column < 0 {
		return batch.Summary{}, fmt.Errorf("%s has no header row", filepath.Base(run.InputPath))
	}

	if fetch == nil {
		return batch.Summary{}, errors.New("revenue func is required")
	}

	opts := run.Opts
	userProgress := opts.OnProgress
	opts.OnProgress = func(done, total int) {
		if done == total || done%25 == 0 {
			log.Info("batch progress", zap.Int("done", done), zap.Int("total", total))
		}
		if userProgress != nil {
			userProgress(done, total)
		}
	}

	log.Info("batch run start",
		zap.String("input", run.InputPath),
		zap.String("output", outputPath),
		zap.String("column", table.Header[column]),
		zap.Int("rows", len(table.Rows)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Duration("delay", opts.Delay),
		zap.Int("maxRetries", opts.MaxRetries),
		zap.Duration("timeout", opts.RequestTimeout),
		zap.Float64("rateLimitRPS", opts.RateLimitRPS),
	)

	summary, err := batch.Process(ctx, table, column, newTracedFetcher(fetch, log, opts.MaxRetries).Revenue, opts)
	if err != nil {
		return summary, err
	}
	log.Info("batch resolved",
		zap.Int("ok", summary.OK),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(runStart).Round(time.Millisecond)),
	)

	var outBuf bytes.Buffer
	if err := localio.WriteTable(&outBuf, outputPath, table); err != nil {
		return summary, err
	}
	if err := os.WriteFile(outputPath, outBuf.Bytes(), 0o644); err != nil {
		return summary, err
	}
	log.Info("batch run complete",
		zap.String("output", outputPath),
		zap.Duration("totalDuration", time.Since(runStart).Round(time.Millisecond)),
	)
	return summary, nil
}

// tracedFetcher logs every upstream attempt of a batch run.
type tracedFetcher struct {
	next       batch.RevenueFunc
	logger     *zap.Logger
	maxRetries int

	mu       sync.Mutex
	attempts map[string]int
}

func newTracedFetcher(next batch.RevenueFunc, logger *zap.Logger, maxRetries int) *tracedFetcher {
	return &tracedFetcher{
		next:       next,
		logger:     logger,
		maxRetries: maxRetries,
		attempts:   make(map[string]int),
	}
}

func (t *tracedFetcher) Revenue(ctx context.Context, siren string) (revenue.Fact, error) {
	attempt := t.nextAttempt(siren)
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}

	start := time.Now()
	fact, err := t.next(ctx, siren)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		retryable := isRetryableError(err)
		t.logger.Debug("revenue lookup failed",
			zap.String("siren", siren),
			zap.Int("attempt", attempt),
			zap.Duration("duration", elapsed),
			zap.String("deadlineIn", deadlineIn),
			zap.Bool("retryable", retryable),
			zap.Bool("willRetry", retryable && attempt <= t.maxRetries),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return fact, err
	}
	t.logger.Debug("revenue lookup ok",
		zap.String("siren", siren),
		zap.Int("attempt", attempt),
		zap.Duration("duration", elapsed),
		zap.Int("year", fact.Year),
		zap.Int64("amountThousands", fact.AmountThousands),
		zap.String("source", string(fact.Source)),
	)
	return fact, nil
}

func (t *tracedFetcher) nextAttempt(siren string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[siren]++
	return t.attempts[siren]
}

func isRetryableError(err error) bool {
	var transientErr *core.TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var limitedTransientErr *core.LimitedTransientError
	if errors.As(err, &limitedTransientErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
