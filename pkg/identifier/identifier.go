package identifier

import (
	"strings"
	"unicode"
)

// Kind is the detected identifier family.
type Kind string

const (
	KindSIREN   Kind = "SIREN"
	KindSIRET   Kind = "SIRET"
	KindVAT     Kind = "TVA"
	KindInvalid Kind = ""
)

// Identifier is a classified company identifier. Values are immutable once built by Classify.
type Identifier struct {
	Raw        string
	Normalized string
	Kind       Kind
}

// Valid reports whether the identifier can be sent upstream.
func (id Identifier) Valid() bool {
	return id.Kind != KindInvalid
}

// Hint returns a short user-facing explanation for invalid identifiers.
func (id Identifier) Hint() string {
	if id.Valid() {
		return ""
	}
	if id.Normalized == "" {
		return "Entrez un identifiant."
	}
	return "Utilisez SIREN (9), SIRET (14) ou TVA FR…"
}

func (id Identifier) String() string {
	return id.Normalized
}

// Classify normalizes raw user input (spaces, NBSP and hyphens removed, uppercased) and
// detects its kind.
func Classify(raw string) Identifier {
	s := Normalize(raw)
	id := Identifier{Raw: raw, Normalized: s, Kind: KindInvalid}
	switch {
	case s == "":
	case strings.HasPrefix(s, "FR") && len(s) >= 4:
		id.Kind = KindVAT
	case isDigits(s) && len(s) == 9:
		id.Kind = KindSIREN
	case isDigits(s) && len(s) == 14:
		id.Kind = KindSIRET
	}
	return id
}

// Normalize strips whitespace and hyphens and uppercases the remainder.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// BatchSIREN reduces a spreadsheet cell to a SIREN: non-digits are dropped and at most the
// trailing 9 digits are kept. ok is false unless exactly 9 digits remain.
func BatchSIREN(raw string) (siren string, ok bool) {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) > 9 {
		digits = digits[len(digits)-9:]
	}
	return string(digits), len(digits) == 9
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
