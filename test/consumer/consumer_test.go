package consumer

import (
	"context"
	"strings"
	"testing"

	"github.com/shpitdev/company-revenue-lookup/pkg/identifier"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/io/local"
	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/worker"
	"github.com/shpitdev/company-revenue-lookup/pkg/registry"
	"github.com/shpitdev/company-revenue-lookup/pkg/revenue"
)

func TestPublicPackagesCompile(t *testing.T) {
	t.Parallel()

	if id := identifier.Classify("552 100 554"); id.Kind != identifier.KindSIREN {
		t.Fatalf("unexpected kind: %q", id.Kind)
	}

	fact, ok := revenue.Extract([]byte(`{"formatted":"CA (2021) = 980 K€"}`))
	if !ok || fact.AmountThousands != 980 {
		t.Fatalf("unexpected fact: %#v ok=%t", fact, ok)
	}

	if _, err := registry.NewClient(registry.DefaultConfig(), registry.StaticToken("x"), nil); err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	tbl, err := local.ReadTable(strings.NewReader("siren\n552100554\n"), "in.csv")
	if err != nil || local.DetectIdentifierColumn(tbl.Header) != 0 {
		t.Fatalf("ReadTable failed: %v", err)
	}

	_, err = worker.ProcessAll(context.Background(), []string{"x"}, func(_ context.Context, in string) (string, error) {
		return in, nil
	}, worker.Options{Workers: 1})
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
}
