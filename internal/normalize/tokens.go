package normalize

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tokens.yaml
var tokensYAML []byte

// tokenTable is the on-disk shape of the legal-entity token rules.
type tokenTable struct {
	Default   []string            `yaml:"default"`
	Countries map[string][]string `yaml:"countries"`
}

// NewNormalizer builds a Normalizer from the embedded token table.
func NewNormalizer() (*Normalizer, error) {
	var tbl tokenTable
	if err := yaml.Unmarshal(tokensYAML, &tbl); err != nil {
		return nil, eris.Wrap(err, "normalize: parse token table")
	}
	return &Normalizer{defaults: tbl.Default, byCountry: tbl.Countries}, nil
}
