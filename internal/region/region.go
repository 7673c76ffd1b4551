// Package region resolves free-text country names and aliases to canonical
// two-letter region codes.
package region

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var regionsYAML []byte

// entry is one row of the static region table.
type entry struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Resolver maps country names, aliases and codes to region codes.
type Resolver struct {
	byName map[string]string
}

// NewResolver builds a Resolver from the embedded region table.
func NewResolver() (*Resolver, error) {
	var entries []entry
	if err := yaml.Unmarshal(regionsYAML, &entries); err != nil {
		return nil, eris.Wrap(err, "region: parse table")
	}

	byName := make(map[string]string, len(entries)*3)
	for _, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		byName[strings.ToLower(strings.TrimSpace(e.Name))] = code
		byName[strings.ToLower(code)] = code
		for _, a := range e.Aliases {
			byName[strings.ToLower(strings.TrimSpace(a))] = code
		}
	}
	return &Resolver{byName: byName}, nil
}

// Resolve returns the two-letter region code for a free-text country string.
// The match is case-insensitive against canonical names, aliases and the
// codes themselves. Unresolvable input is returned lower-cased; Resolve
// never fails.
func (r *Resolver) Resolve(country string) string {
	key := strings.ToLower(strings.TrimSpace(country))
	if code, ok := r.byName[key]; ok {
		return code
	}
	return key
}

// IsCode reports whether s is a known two-letter region code.
func (r *Resolver) IsCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	code, ok := r.byName[strings.ToLower(s)]
	return ok && strings.EqualFold(code, s)
}
