package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/company-revenue-lookup/internal/lookup"
	"github.com/shpitdev/company-revenue-lookup/pkg/identifier"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/io/local"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/worker"
	"github.com/shpitdev/company-revenue-lookup/pkg/revenue"
)

const (
	// ColumnYear and ColumnRevenue are the columns appended to every processed table.
	ColumnYear    = "Year"
	ColumnRevenue = "Revenue (thousands)"

	DefaultConcurrency = 5
	DefaultDelay       = 150 * time.Millisecond
)

// ErrInvalidSIREN rejects a cell that does not reduce to exactly nine digits.
var ErrInvalidSIREN = errors.New("SIREN invalide")

// RevenueFunc resolves one SIREN to its latest revenue.
type RevenueFunc func(ctx context.Context, siren string) (revenue.Fact, error)

// Outcome is the terminal result for one input row: a Fact or an Err, never both.
type Outcome struct {
	Input string
	SIREN string
	Fact  revenue.Fact
	Err   error
}

// OK reports whether the row resolved to a revenue figure.
func (o Outcome) OK() bool {
	return o.Err == nil
}

type Options struct {
	Concurrency int
	// Delay is the pause after every item. Zero means DefaultDelay; negative disables it.
	Delay time.Duration

	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64

	OnProgress func(done, total int)
}

func (o Options) workerOptions() worker.Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	switch {
	case o.Delay == 0:
		o.Delay = DefaultDelay
	case o.Delay < 0:
		o.Delay = 0
	}
	return worker.Options{
		Workers:           o.Concurrency,
		Delay:             o.Delay,
		MaxRetries:        o.MaxRetries,
		RequestTimeout:    o.RequestTimeout,
		RateLimitRPS:      o.RateLimitRPS,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		BackoffJitterFrac: 0.2,
		OnProgress:        o.OnProgress,
	}
}

// Run resolves every id and returns one Outcome per id, index-aligned with the input.
//
// Ids that do not reduce to a SIREN fail with ErrInvalidSIREN without a network call.
// Item failures are recorded in their Outcome and never stop the run. The returned error
// is non-nil only when ctx ends first; the outcomes are still complete and aligned.
func Run(ctx context.Context, ids []string, fetch RevenueFunc, opts Options) ([]Outcome, error) {
	if fetch == nil {
		return nil, fmt.Errorf("batch: revenue func is required")
	}
	results, err := worker.ProcessAll(ctx, ids, func(ctx context.Context, raw string) (revenue.Fact, error) {
		siren, ok := identifier.BatchSIREN(raw)
		if !ok {
			return revenue.Fact{}, ErrInvalidSIREN
		}
		return fetch(ctx, siren)
	}, opts.workerOptions())
	if results == nil && err != nil {
		return nil, err
	}

	out := make([]Outcome, len(results))
	for i, r := range results {
		siren, _ := identifier.BatchSIREN(r.Input)
		out[i] = Outcome{
			Input: r.Input,
			SIREN: siren,
			Fact:  r.Output,
			Err:   r.Err,
		}
		if r.Err != nil {
			out[i].Fact = revenue.Fact{}
		}
	}
	return out, err
}

// Annotate appends the year and revenue columns to t. A failed row gets an empty year
// and its error text in the revenue column.
func Annotate(t *local.Table, outcomes []Outcome) error {
	if len(outcomes) != len(t.Rows) {
		return fmt.Errorf("batch: %d outcomes for %d rows", len(outcomes), len(t.Rows))
	}
	years := make([]any, len(outcomes))
	amounts := make([]any, len(outcomes))
	for i, o := range outcomes {
		if !o.OK() {
			years[i] = ""
			amounts[i] = ErrorText(o.Err)
			continue
		}
		years[i] = strconv.Itoa(o.Fact.Year)
		amounts[i] = o.Fact.AmountThousands
	}
	if err := t.AppendColumn(ColumnYear, years); err != nil {
		return err
	}
	return t.AppendColumn(ColumnRevenue, amounts)
}

// ErrorText is the cell text recorded for a failed row.
func ErrorText(err error) string {
	if errors.Is(err, ErrInvalidSIREN) {
		return ErrInvalidSIREN.Error()
	}
	msg := strings.TrimSpace(lookup.Message(err))
	if msg == "" {
		return "erreur"
	}
	return msg
}

// Process reads the identifier column of t, runs the batch and annotates t in place.
func Process(ctx context.Context, t *local.Table, column int, fetch RevenueFunc, opts Options) (Summary, error) {
	if column < 0 || column >= len(t.Header) {
		return Summary{}, fmt.Errorf("batch: column %d out of range (table has %d columns)", column, len(t.Header))
	}
	outcomes, err := Run(ctx, t.Column(column), fetch, opts)
	if outcomes == nil {
		return Summary{}, err
	}
	if aerr := Annotate(t, outcomes); aerr != nil {
		return Summary{}, aerr
	}
	return Summarize(outcomes), err
}

// Summary counts outcomes by kind.
type Summary struct {
	Total   int
	OK      int
	Invalid int
	Failed  int
}

// Summarize tallies outcomes. Invalid rows are not counted as Failed.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.OK():
			s.OK++
		case errors.Is(o.Err, ErrInvalidSIREN):
			s.Invalid++
		default:
			s.Failed++
		}
	}
	return s
}
