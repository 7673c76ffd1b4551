// Package normalize cleans raw facility names for matching: punctuation and
// casing are stripped, then country-specific legal-entity suffix tokens are
// removed according to a per-country rule table.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultRegion is the sentinel country code for the language-agnostic
// token list.
const DefaultRegion = "DEFAULT"

// strippedChars are replaced with spaces during base cleaning.
const strippedChars = `|&;$%@"<>()+,.':`

// Clean lower-cases s, replaces the stripped character set with spaces and
// collapses whitespace. Deterministic and idempotent.
func Clean(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(strippedChars, r) {
			b.WriteByte(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalizer removes legal-entity tokens from cleaned names.
type Normalizer struct {
	defaults  []string
	byCountry map[string][]string
}

// Normalize cleans raw and strips the legal-entity tokens configured for
// countryCode. For non-default countries the country list is concatenated
// with the default list; a country with no configured list gets no token
// removal at all. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw, countryCode string) string {
	name := Clean(raw)
	if name == "" {
		return ""
	}

	tokens := n.tokensFor(countryCode)
	if len(tokens) == 0 {
		return name
	}

	for _, tok := range tokens {
		tok = Clean(tok)
		if tok == "" {
			continue
		}
		if strings.Contains(tok, " ") {
			name = stripEdges(name, tok)
		} else {
			name = stripWord(name, tok)
		}
	}
	return strings.Join(strings.Fields(name), " ")
}

func (n *Normalizer) tokensFor(countryCode string) []string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" || code == DefaultRegion {
		return n.defaults
	}
	list, ok := n.byCountry[code]
	if !ok {
		return nil
	}
	return append(append([]string{}, list...), n.defaults...)
}

// stripWord removes every space-delimited occurrence of a single-word token,
// including at the head or tail of the name.
func stripWord(name, tok string) string {
	fields := strings.Fields(name)
	kept := fields[:0]
	for _, f := range fields {
		if f != tok {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// stripEdges removes a multi-word token only when it sits at the very start
// or very end of the name. Mid-string occurrences are left alone: inner
// word runs like "co ltd" are too ambiguous to cut out of a real name.
// Edge occurrences are stripped to a fixed point so a name built from
// repeated tokens still normalizes in a single call.
func stripEdges(name, tok string) string {
	for {
		switch {
		case name == tok:
			return ""
		case strings.HasPrefix(name, tok+" "):
			name = strings.TrimPrefix(name, tok+" ")
		case strings.HasSuffix(name, " "+tok):
			name = strings.TrimSuffix(name, " "+tok)
		default:
			return strings.TrimSpace(name)
		}
	}
}
