package redact_test

import (
	"strings"
	"testing"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/redact"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  plain message ", want: "plain message"},
		{in: `header X-Authorization: socapi abc123 rejected`, want: "header <redacted_kv> <redacted> rejected"},
		{in: "auth Bearer eyJhbGciOi.xx", want: "auth Bearer <redacted>"},
		{in: "X-API-KEY=s3cr3t failed", want: "<redacted_kv> failed"},
		{in: "SOC_API_KEY: s3cr3t", want: "<redacted_kv>"},
	}
	for _, tc := range cases {
		if got := redact.Secrets(tc.in); got != tc.want {
			t.Fatalf("Secrets(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValue(t *testing.T) {
	t.Parallel()

	got := redact.Value("upstream echoed tok-42 back", "tok-42")
	if strings.Contains(got, "tok-42") {
		t.Fatalf("secret leaked: %q", got)
	}
	if got := redact.Value("nothing here", ""); got != "nothing here" {
		t.Fatalf("unexpected output: %q", got)
	}
}
