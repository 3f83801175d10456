package prompts

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/creditread/internal/formats"
)

const specHeader = `Respond with a single JSON object. Use exactly these keys; omit a key or use null when the value is not in the report.`

const specFooter = `Behavioral constraints:
- Always respond with valid JSON, no markdown fencing, no commentary
- Lists are JSON arrays of objects; use [] only when the report explicitly states there are none
- Do not add keys that are not listed above`

// Spec renders the output-shape specification for a schema: every field
// with its kind, required flag, constraints and, for lists, item fields.
func Spec(schema formats.Schema) string {
	var sb strings.Builder
	sb.WriteString(specHeader)
	sb.WriteString("\n\nFields:\n")
	writeFields(&sb, schema.Fields, "")
	sb.WriteString("\n")
	sb.WriteString(specFooter)
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []formats.FieldSpec, indent string) {
	for _, f := range fields {
		fmt.Fprintf(sb, "%s- %s (%s", indent, f.Name, kindLabel(f))
		if f.Required {
			sb.WriteString(", required")
		}
		sb.WriteString(")")

		if notes := constraintNotes(f); len(notes) > 0 || f.Description != "" {
			sb.WriteString(": ")
			parts := notes
			if f.Description != "" {
				parts = append([]string{f.Description}, notes...)
			}
			sb.WriteString(strings.Join(parts, "; "))
		}
		sb.WriteString("\n")

		if f.Kind == formats.KindList {
			writeFields(sb, f.Items, indent+"    ")
		}
	}
}

func kindLabel(f formats.FieldSpec) string {
	switch f.Kind {
	case formats.KindDate:
		return "date YYYY-MM-DD"
	case formats.KindNumber:
		if f.Integer {
			return "integer"
		}
		return "number"
	case formats.KindList:
		return "array of objects"
	default:
		return "string"
	}
}

func constraintNotes(f formats.FieldSpec) []string {
	var notes []string
	if len(f.Enum) > 0 {
		notes = append(notes, "one of "+strings.Join(f.Enum, ", "))
	}
	if f.Min != nil && f.Max != nil {
		notes = append(notes, fmt.Sprintf("between %g and %g", *f.Min, *f.Max))
	} else if f.Min != nil && *f.Min == 0 {
		notes = append(notes, "not negative")
	}
	if f.NotBefore != "" {
		notes = append(notes, "not before "+f.NotBefore)
	}
	return notes
}
