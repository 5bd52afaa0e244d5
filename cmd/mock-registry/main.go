package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/company-revenue-lookup/internal/mockregistry"
)

func main() {
	addr := defaultString("MOCK_REGISTRY_ADDR", ":8081")
	dataDir := defaultString("MOCK_REGISTRY_DATA_DIR", "/data/registry")
	token := defaultString("MOCK_REGISTRY_TOKEN", "")

	fs := flag.NewFlagSet("mock-registry", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&dataDir, "data-dir", dataDir, "Directory of canned responses: <siren>.json (profile), <siren>.<resource>.json")
	fs.StringVar(&token, "token", token, "If set, require X-Authorization: socapi <token>")
	_ = fs.Parse(os.Args[1:])

	srv := mockregistry.New()
	n, err := srv.LoadDir(dataDir)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		os.Exit(1)
	}
	if token != "" {
		srv.RequireHeader("X-Authorization", "socapi "+token)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-registry listening on %s%s (%d resources from %s)\n", addr, mockregistry.BasePath, n, dataDir)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
