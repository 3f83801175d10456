// Package prompts holds the extraction prompt catalog: per-layout
// instructions paired with an output specification rendered from the
// layout's schema.
package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/creditread/internal/formats"
)

// Catalog resolves the prompt for each layout. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	formats      *formats.Catalog
	instructions map[formats.Format]string
	specs        map[formats.Format]string
}

// New builds the catalog from the built-in instructions, replacing any
// layout whose instructions are overridden.
func New(catalog *formats.Catalog, overrides *formats.Overrides) (*Catalog, error) {
	c := &Catalog{
		formats:      catalog,
		instructions: make(map[formats.Format]string, len(instructions)),
		specs:        make(map[formats.Format]string, len(instructions)),
	}

	for _, f := range formats.All() {
		text := instructions[f]
		if o := strings.TrimSpace(overrides.Instructions(f)); o != "" {
			text = o
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingInstructions, f)
		}

		c.instructions[f] = text
		c.specs[f] = Spec(catalog.Schema(f))
	}

	return c, nil
}

// Instructions returns the layout-specific instructions. Layouts outside
// the closed set use the generic fallback.
func (c *Catalog) Instructions(f formats.Format) string {
	if text, ok := c.instructions[f]; ok {
		return text
	}
	return c.instructions[formats.Unknown]
}

// Spec returns the rendered output specification for a layout.
func (c *Catalog) Spec(f formats.Format) string {
	if text, ok := c.specs[f]; ok {
		return text
	}
	return c.specs[formats.Unknown]
}

// Compose builds the full model prompt: shared rules, layout instructions,
// output spec, the report text, and the rendered tables. Text and tables
// together stay within maxChars runes; tables get at most a quarter of it.
func (c *Catalog) Compose(f formats.Format, text, tables string, maxChars int) string {
	textBudget, tableBudget := maxChars, maxChars
	if maxChars > 0 && tables != "" {
		tableBudget = min(utf8.RuneCountInString(tables), maxChars/4)
		textBudget = maxChars - tableBudget
	}

	var sb strings.Builder
	sb.WriteString(commonInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(c.Instructions(f))
	sb.WriteString("\n\n")
	sb.WriteString(c.Spec(f))
	sb.WriteString("\n\nReport text:\n\n")
	sb.WriteString(truncate(text, textBudget))
	if tables != "" && tableBudget != 0 {
		sb.WriteString("\n\nTables:\n\n")
		sb.WriteString(truncate(tables, tableBudget))
	}
	return sb.String()
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	i := 0
	for pos := range s {
		if i == maxChars {
			return s[:pos]
		}
		i++
	}
	return s
}
