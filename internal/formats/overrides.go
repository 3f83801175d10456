package formats

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides adjusts the built-in catalog from a YAML file, e.g.
//
//	formats:
//	  nbki:
//	    signatures: ["Национальное бюро кредитных историй", "nbki.ru"]
//	    required: [full_name, birth_date]
//	    instructions: |
//	      Extract ...
type Overrides struct {
	Formats map[Format]FormatOverride `yaml:"formats"`
}

// FormatOverride replaces parts of one layout's definition. Empty values
// keep the built-in definition.
type FormatOverride struct {
	Signatures   []string `yaml:"signatures"`
	Required     []string `yaml:"required"`
	Instructions string   `yaml:"instructions"`
}

// LoadOverrides reads catalog overrides from path. An empty path yields nil.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidCatalog, path, err)
	}

	return &o, nil
}

// Instructions returns the instruction override for f, if any.
func (o *Overrides) Instructions(f Format) string {
	if o == nil {
		return ""
	}
	return o.Formats[f].Instructions
}
