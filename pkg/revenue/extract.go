package revenue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// SourcePath tags which extraction rule produced a Fact.
type SourcePath string

const (
	SourceDirect    SourcePath = "direct"
	SourceTable     SourcePath = "table"
	SourceFormatted SourcePath = "formatted"
)

// Fact is the normalized latest declared revenue of a company.
type Fact struct {
	Year            int
	AmountThousands int64
	Source          SourcePath
}

// Formatted renders the fact the way the lookup endpoint reports it.
func (f Fact) Formatted() string {
	return fmt.Sprintf("CA (%d) = %d K€", f.Year, f.AmountThousands)
}

// ToThousands converts euros to thousands of euros, rounding half away from zero.
func ToThousands(euros float64) int64 {
	return int64(math.Round(euros / 1000))
}

type rule struct {
	source SourcePath
	match  func(root any) (Fact, bool)
}

// rules are tried in order; the first match wins and later rules are never consulted.
var rules = []rule{
	{source: SourceDirect, match: matchDirect},
	{source: SourceTable, match: matchTable},
	{source: SourceFormatted, match: matchFormatted},
}

// Extract decodes an upstream JSON payload and returns its latest revenue fact.
// Malformed JSON is reported as not found.
func Extract(payload []byte) (Fact, bool) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Fact{}, false
	}
	return ExtractValue(v)
}

// ExtractValue is Extract for an already decoded JSON document.
func ExtractValue(v any) (Fact, bool) {
	if v == nil {
		return Fact{}, false
	}
	for _, r := range rules {
		if f, ok := r.match(v); ok {
			f.Source = r.source
			return f, true
		}
	}
	return Fact{}, false
}

func matchDirect(root any) (Fact, bool) {
	for _, env := range envelopes(root) {
		if f, ok := scalarFact(env, directAmountKeys, directYearKeys); ok {
			return f, true
		}
	}
	for _, env := range financialEnvelopes(root) {
		if f, ok := scalarFact(env, financialAmountKeys, financialYearKeys); ok {
			return f, true
		}
	}
	return Fact{}, false
}

func scalarFact(env map[string]any, amountKeys, yearKeys []string) (Fact, bool) {
	amount, ok := firstNumber(env, amountKeys)
	if !ok || amount == 0 {
		return Fact{}, false
	}
	year, ok := firstYear(env, yearKeys)
	if !ok {
		return Fact{}, false
	}
	return Fact{Year: year, AmountThousands: ToThousands(amount)}, true
}

type tableEntry struct {
	year   int
	amount float64
	hasAmt bool
}

func matchTable(root any) (Fact, bool) {
	var entries []tableEntry
	for _, table := range candidateTables(root) {
		for _, item := range table {
			obj, ok := asObject(item)
			if !ok {
				continue
			}
			var e tableEntry
			if y, ok := firstYear(obj, tableYearKeys); ok {
				e.year = y
			}
			if amt, ok := firstNumber(obj, tableAmountKeys); ok && amt != 0 {
				e.amount = amt
				e.hasAmt = true
			}
			entries = append(entries, e)
		}
	}

	// Stable: equal years keep list order, so the first entry for the latest year wins.
	slices.SortStableFunc(entries, func(a, b tableEntry) int {
		switch {
		case a.year == b.year:
			return 0
		case a.year == 0:
			return 1
		case b.year == 0:
			return -1
		case a.year > b.year:
			return -1
		default:
			return 1
		}
	})

	for _, e := range entries {
		if e.year == 0 || !e.hasAmt {
			continue
		}
		return Fact{Year: e.year, AmountThousands: ToThousands(e.amount)}, true
	}
	return Fact{}, false
}

var formattedRe = regexp.MustCompile(`(?i)CA\s*\((\d{4})\)\s*=\s*([\d\s\x{00A0}\x{202F}]+)K€`)

func matchFormatted(root any) (Fact, bool) {
	for _, env := range envelopes(root) {
		raw, ok := lookup(env, "formatted")
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		m := formattedRe.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err != nil || year == 0 {
			continue
		}
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m[2])
		amount, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || amount == 0 {
			continue
		}
		return Fact{Year: year, AmountThousands: amount}, true
	}
	return Fact{}, false
}

// envelopes returns the payload object followed by its "data" object, when present.
func envelopes(root any) []map[string]any {
	obj, ok := asObject(root)
	if !ok {
		return nil
	}
	out := []map[string]any{obj}
	if data, ok := lookup(obj, "data"); ok {
		if inner, ok := asObject(data); ok {
			out = append(out, inner)
		}
	}
	return out
}

// financialEnvelopes returns the nested financial-information objects some offers return
// instead of a flat payload.
func financialEnvelopes(root any) []map[string]any {
	var out []map[string]any
	for _, env := range envelopes(root) {
		for _, key := range financialEnvelopeKeys {
			if v, ok := lookup(env, key); ok {
				if inner, ok := asObject(v); ok {
					out = append(out, inner)
				}
			}
		}
	}
	return out
}

// candidateTables lists arrays that may hold yearly balance-sheet entries: well-known keys
// first, then any other array value in key order.
func candidateTables(root any) [][]any {
	if arr, ok := root.([]any); ok {
		return [][]any{arr}
	}
	var out [][]any
	for _, env := range envelopes(root) {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		seen := make(map[string]bool)
		for _, key := range tableKeys {
			for _, k := range keys {
				if canonKey(k) != key || seen[k] {
					continue
				}
				if arr, ok := env[k].([]any); ok {
					seen[k] = true
					out = append(out, arr)
				}
			}
		}
		for _, k := range keys {
			if seen[k] {
				continue
			}
			if arr, ok := env[k].([]any); ok {
				out = append(out, arr)
			}
		}
	}
	return out
}
