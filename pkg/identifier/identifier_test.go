package identifier_test

import (
	"testing"

	"github.com/shpitdev/company-revenue-lookup/pkg/identifier"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		kind identifier.Kind
		norm string
	}{
		{raw: "552 100 554", kind: identifier.KindSIREN, norm: "552100554"},
		{raw: "55210055400013", kind: identifier.KindSIRET, norm: "55210055400013"},
		{raw: "552-100-554-00013", kind: identifier.KindSIRET, norm: "55210055400013"},
		{raw: "fr 40 552100554", kind: identifier.KindVAT, norm: "FR40552100554"},
		{raw: "FR12", kind: identifier.KindVAT, norm: "FR12"},
		{raw: "FR1", kind: identifier.KindInvalid, norm: "FR1"},
		{raw: "12345678", kind: identifier.KindInvalid, norm: "12345678"},
		{raw: "1234567890", kind: identifier.KindInvalid, norm: "1234567890"},
		{raw: "55210055A", kind: identifier.KindInvalid, norm: "55210055A"},
		{raw: " 552 100 554", kind: identifier.KindSIREN, norm: "552100554"},
		{raw: "   ", kind: identifier.KindInvalid, norm: ""},
	}
	for _, tc := range cases {
		got := identifier.Classify(tc.raw)
		if got.Kind != tc.kind || got.Normalized != tc.norm {
			t.Fatalf("Classify(%q) = %#v, want kind=%q norm=%q", tc.raw, got, tc.kind, tc.norm)
		}
		if got.Raw != tc.raw {
			t.Fatalf("Classify(%q) lost raw input: %#v", tc.raw, got)
		}
		if got.Valid() == (tc.kind == identifier.KindInvalid) {
			t.Fatalf("Classify(%q).Valid() = %t", tc.raw, got.Valid())
		}
	}
}

func TestClassify_AllNineAndFourteenDigitStrings(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"000000000", "999999999", "123456789"} {
		if k := identifier.Classify(s).Kind; k != identifier.KindSIREN {
			t.Fatalf("Classify(%q) = %q, want SIREN", s, k)
		}
	}
	for _, s := range []string{"00000000000000", "99999999999999", "12345678901234"} {
		if k := identifier.Classify(s).Kind; k != identifier.KindSIRET {
			t.Fatalf("Classify(%q) = %q, want SIRET", s, k)
		}
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	if h := identifier.Classify("").Hint(); h != "Entrez un identifiant." {
		t.Fatalf("unexpected empty hint: %q", h)
	}
	if h := identifier.Classify("abc").Hint(); h == "" {
		t.Fatalf("expected hint for invalid identifier")
	}
	if h := identifier.Classify("552100554").Hint(); h != "" {
		t.Fatalf("expected no hint for SIREN, got %q", h)
	}
}

func TestBatchSIREN(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "552100554", want: "552100554", ok: true},
		{raw: " 552 100 554 ", want: "552100554", ok: true},
		{raw: "55210055400013", want: "055400013", ok: true},
		{raw: "FR40552100554", want: "552100554", ok: true},
		{raw: "12345", want: "12345", ok: false},
		{raw: "", want: "", ok: false},
		{raw: "n/a", want: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := identifier.BatchSIREN(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("BatchSIREN(%q) = (%q, %t), want (%q, %t)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
