package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shpitdev/company-revenue-lookup/internal/app"
	"github.com/shpitdev/company-revenue-lookup/internal/batch"
	"github.com/shpitdev/company-revenue-lookup/internal/lookup"
	"github.com/shpitdev/company-revenue-lookup/internal/server"
	"github.com/shpitdev/company-revenue-lookup/internal/session"
	"github.com/shpitdev/company-revenue-lookup/internal/version"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
	"github.com/shpitdev/company-revenue-lookup/pkg/registry"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		_, _ = fmt.Fprintln(os.Stdout, version.Current)
		return
	case "serve":
		code = runServe(ctx, os.Args[2:])
	case "batch":
		code = runBatch(ctx, os.Args[2:])
	case "lookup":
		code = runLookup(ctx, os.Args[2:])
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		code = 2
	}
	stop()
	os.Exit(code)
}

func runServe(ctx context.Context, args []string) int {
	batchEnv, err := loadBatchOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", defaultString("ADDR", ":8080"), "Listen address (env: ADDR)")
	maxUpload := fs.Int64("max-upload-bytes", server.DefaultMaxUploadBytes, "Largest accepted batch upload")
	historySize := fs.Int("history-size", session.DefaultHistorySize, "Recent queries remembered per session")
	addBatchFlags(fs, &batchEnv)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := newLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	svc, err := newService(logger)
	if err != nil {
		logger.Error("registry config error", zap.String("error", redact.Secrets(err.Error())))
		return 2
	}
	if _, err := registry.EnvToken(); err != nil {
		// Read again per request; lookups answer 500 until it is set.
		logger.Warn("upstream credential not set", zap.String("env", registry.TokenEnv))
	}
	history, err := session.NewStore(session.DefaultMaxSessions, *historySize)
	if err != nil {
		logger.Error("session store error", zap.Error(err))
		return 1
	}

	srv := server.New(svc, history, server.Options{
		Batch:          batchEnv,
		MaxUploadBytes: *maxUpload,
		Logger:         logger,
	})
	logger.Info("starting", zap.String("version", version.Current))
	if err := srv.Run(ctx, *addr); err != nil {
		logger.Error("server error", zap.Error(err))
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, args []string) int {
	batchEnv, err := loadBatchOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var run app.LocalRun
	fs.StringVar(&run.InputPath, "input", "", "Input spreadsheet (.xlsx, .xls or .csv)")
	fs.StringVar(&run.OutputPath, "output", "", "Output path (default: <input>_with_CA.<ext> next to the input)")
	fs.StringVar(&run.Column, "column", "", "Identifier column name (default: auto-detect a SIREN column)")
	addBatchFlags(fs, &batchEnv)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if run.InputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "batch requires --input")
		return 2
	}
	if _, err := registry.EnvToken(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	run.Opts = batchEnv

	logger, err := newLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	svc, err := newService(logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "registry config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	summary, err := app.RunLocal(ctx, run, svc.Revenue, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch run failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	_, _ = fmt.Fprintf(os.Stdout, "%d rows: %d ok, %d invalid, %d failed\n", summary.Total, summary.OK, summary.Invalid, summary.Failed)
	return 0
}

func runLookup(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	profile := fs.Bool("profile", false, "Print the company profile instead of the revenue")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(os.Stderr, "lookup requires exactly one identifier (SIREN, SIRET or TVA)")
		return 2
	}

	svc, err := newService(zap.NewNop())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "registry config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if *profile {
		status, body, err := svc.Profile(ctx, fs.Arg(0))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%d %s\n", lookup.StatusFor(err), lookup.Message(err))
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", body)
		if status/100 != 2 {
			return 1
		}
		return 0
	}

	fact, err := svc.Revenue(ctx, fs.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%d %s\n", lookup.StatusFor(err), lookup.Message(err))
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"formatted": fact.Formatted(),
		"year":      fact.Year,
		"ca_k":      fact.AmountThousands,
		"source":    fact.Source,
	})
	return 0
}

func newService(logger *zap.Logger) (*lookup.Service, error) {
	cfg, err := registry.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := registry.NewClient(cfg, registry.EnvToken, nil)
	if err != nil {
		return nil, err
	}
	return lookup.NewService(client, logger), nil
}

func newLogger() (*zap.Logger, error) {
	debug, err := envBool("DEBUG")
	if err != nil {
		return nil, err
	}
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func addBatchFlags(fs *flag.FlagSet, opts *batch.Options) {
	fs.IntVar(&opts.Concurrency, "workers", opts.Concurrency, "Concurrent upstream lookups (env: WORKERS)")
	fs.DurationVar(&opts.Delay, "delay", opts.Delay, "Pause after each item per worker, negative disables (env: BATCH_DELAY)")
	fs.IntVar(&opts.MaxRetries, "max-retries", opts.MaxRetries, "Max retries per row for transient failures (env: MAX_RETRIES)")
	fs.DurationVar(&opts.RequestTimeout, "request-timeout", opts.RequestTimeout, "Per-row request timeout (env: REQUEST_TIMEOUT)")
	fs.Float64Var(&opts.RateLimitRPS, "rate-limit-rps", opts.RateLimitRPS, "Global upstream rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `revenue: latest declared revenue (CA) of French companies

Usage:
  revenue <command> [flags]

Commands:
  serve    Run the HTTP API (/api/ca, /api/societe, /api/batch, /api/history)
  batch    Fill a local spreadsheet's SIREN rows with year and revenue
  lookup   Resolve one SIREN, SIRET or TVA number
  version  Print the version

Examples:
  revenue serve --addr :8080
  revenue batch --input clients.xlsx
  revenue lookup 552100554

Environment:
  SOC_API_KEY           Upstream API credential (required, read per request)
  REGISTRY_CONFIG       Optional YAML upstream profile (base URL, auth scheme, candidate paths)
  REGISTRY_BASE_URL     Upstream base URL override
  REGISTRY_AUTH_HEADER  Credential header override (e.g. X-API-KEY)
  REGISTRY_AUTH_PREFIX  Credential scheme prefix (default: socapi)
  REGISTRY_CA_PATH      Optional PEM bundle for upstream TLS
  ADDR                  Listen address for serve (default :8080)
  WORKERS, BATCH_DELAY, MAX_RETRIES, REQUEST_TIMEOUT, RATE_LIMIT_RPS
  DEBUG                 Development logging when true

A .env file in the working directory is loaded when present.

`)
}
