package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/core"
	"golang.org/x/time/rate"
)

type Options struct {
	// Workers is the number of items processed concurrently.
	Workers int
	// Delay is the pause a worker takes after finishing an item, success or failure,
	// before claiming the next one.
	Delay time.Duration

	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64

	// OnProgress receives the completed count after every item. Calls are serialized and
	// done increases by one each time, reaching total exactly once.
	OnProgress func(done, total int)
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	return o
}

// ProcessAll runs the processor over all input items.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback runs the processor over all input items and invokes onResult
// as each item completes. The callback receives completion-order results; the returned
// slice is index-aligned with items.
//
// Item failures are recorded in their Result and never stop the run. A callback error
// stops the run and is returned with a nil slice. If ctx is cancelled, items that were
// never claimed carry ctx.Err() and the aligned slice is returned alongside ctx.Err().
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	total := len(items)
	out := make([]Result[In, Out], total)
	filled := make([]bool, total)
	completed := 0
	progress := func() {
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, total)
		}
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	// Every claimed index sends exactly once, so a buffer of len(items) never blocks.
	done := make(chan Result[In, Out], total)
	var cursor atomic.Int64
	var wg sync.WaitGroup

	workerFn := func() {
		defer wg.Done()
		for {
			if runCtx.Err() != nil {
				return
			}
			idx := int(cursor.Add(1) - 1)
			if idx >= total {
				return
			}
			done <- processOne(runCtx, idx, items[idx], processor, limiter, opts)

			if int(cursor.Load()) >= total {
				return
			}
			if !pause(runCtx, opts.Delay) {
				return
			}
		}
	}

	workers := min(opts.Workers, total)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go workerFn()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	for res := range done {
		out[res.Index] = res
		filled[res.Index] = true
		progress()
		if onResult != nil {
			if err := onResult(res); err != nil {
				fail(err)
			}
		}
	}

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		for i := range out {
			if filled[i] {
				continue
			}
			out[i] = Result[In, Out]{Index: i, Input: items[i], Err: ctxErr}
			progress()
		}
		return out, ctxErr
	}
	return out, nil
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func processOne[In any, Out any](
	ctx context.Context,
	idx int,
	item In,
	processor func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
	opts Options,
) Result[In, Out] {
	res, err := processWithRetry(ctx, item, processor, limiter, opts)
	return Result[In, Out]{
		Index:  idx,
		Input:  item,
		Output: res,
		Err:    err,
	}
}

func processWithRetry[In any, Out any](
	ctx context.Context,
	item In,
	processor func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
	opts Options,
) (Out, error) {
	var lastOut Out
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastOut, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return lastOut, err
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		result, err := processor(reqCtx, item)
		lastOut = result
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return lastOut, ctx.Err()
		}
		maxRetries := maxExtraRetries(opts.MaxRetries, err)
		if !isTransient(err) || attempt >= maxRetries {
			return lastOut, err
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return lastOut, ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *core.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
