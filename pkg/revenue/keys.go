package revenue

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Key lists hold canonical spellings (lowercase, no separators), in lookup priority order.
var (
	directAmountKeys = []string{"dernierca", "derniercaht", "derniercaconnu", "latestca", "latestrevenue", "lastrevenue", "lastturnover"}
	directYearKeys   = []string{"dernierbildate", "derniereannee", "anneedernierca", "dernierexercice", "latestyear", "lastyear", "latestfiscalyear"}

	financialEnvelopeKeys = []string{"informationsfinancieres", "profilfinancier", "financialprofile"}
	financialAmountKeys   = append(append([]string{}, directAmountKeys...), "chiffreaffaires", "chiffredaffaires", "ca", "caht", "turnover", "revenue")
	financialYearKeys     = append(append([]string{}, directYearKeys...), "annee", "exercice", "year", "datecloture")

	tableKeys       = []string{"bilans", "finances", "financials", "profil", "donnees", "liste", "data"}
	tableYearKeys   = []string{"annee", "anneebilan", "exercice", "year", "fiscalyear", "datecloture", "dateclotureexercice"}
	tableAmountKeys = []string{"ca", "chiffreaffaires", "chiffredaffaires", "caht", "turnover", "revenue", "rescatotal", "catotal", "totalrevenue"}
)

// canonKey folds case and drops "_", "-", " " and "." so "chiffre_affaires",
// "ChiffreAffaires" and "chiffre-affaires" compare equal.
func canonKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// lookup finds key in obj using canonical comparison. Exact matches win over folded ones.
func lookup(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok && v != nil {
		return v, true
	}
	want := canonKey(key)
	var (
		found any
		best  string
		ok    bool
	)
	for k, v := range obj {
		if v == nil || canonKey(k) != want {
			continue
		}
		// Deterministic choice when several spellings collide.
		if !ok || k < best {
			found, best, ok = v, k, true
		}
	}
	return found, ok
}

// firstNumber returns the value of the first key present in obj, parsed as a number.
// A present but non-numeric value is treated as absent and the next key is tried.
func firstNumber(obj map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			return n, true
		}
	}
	return 0, false
}

// firstYear is firstNumber for 4-digit years; dates yield their year.
func firstYear(obj map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if y, ok := toYear(v); ok {
			return y, true
		}
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case float64:
		return finite(t)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return parseNumberString(t)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumberString accepts "1234567", "1 234 567", "1234567.5" and the French "1 234,5".
func parseNumberString(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

var (
	leadingYearRe  = regexp.MustCompile(`^(\d{4})(?:$|[^\d])`)
	trailingYearRe = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-](\d{4})$`)
)

func toYear(v any) (int, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if m := leadingYearRe.FindStringSubmatch(s); m != nil {
			return validYear(m[1])
		}
		if m := trailingYearRe.FindStringSubmatch(s); m != nil {
			return validYear(m[1])
		}
		return 0, false
	}
	n, ok := toNumber(v)
	if !ok || n != math.Trunc(n) || n < 1000 || n > 9999 {
		return 0, false
	}
	return int(n), true
}

func validYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 {
		return 0, false
	}
	return y, true
}
