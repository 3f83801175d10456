package prompts_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/prompts"
)

func newCatalog(t *testing.T, overrides *formats.Overrides) *prompts.Catalog {
	t.Helper()
	c, err := prompts.New(formats.DefaultCatalog(), overrides)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return c
}

func TestEveryFormatHasPrompt(t *testing.T) {
	c := newCatalog(t, nil)

	for _, f := range formats.All() {
		t.Run(string(f), func(t *testing.T) {
			if strings.TrimSpace(c.Instructions(f)) == "" {
				t.Error("instructions empty")
			}
			spec := c.Spec(f)
			for _, field := range formats.DefaultCatalog().Schema(f).Fields {
				if !strings.Contains(spec, "- "+field.Name+" (") {
					t.Errorf("spec missing field %s", field.Name)
				}
			}
		})
	}
}

func TestInstructionsFallback(t *testing.T) {
	c := newCatalog(t, nil)
	if got, want := c.Instructions(formats.Format("bogus")), c.Instructions(formats.Unknown); got != want {
		t.Error("unrecognized format should use the generic instructions")
	}
	if c.Instructions(formats.NBKI) == c.Instructions(formats.Unknown) {
		t.Error("nbki should have dedicated instructions")
	}
}

func TestSpecRendering(t *testing.T) {
	spec := prompts.Spec(formats.DefaultCatalog().Schema(formats.NBKI))

	tests := []struct {
		name string
		want string
	}{
		{"required date", "- birth_date (date YYYY-MM-DD, required)"},
		{"integer range", "- credit_score (integer): between 0 and 999"},
		{"nested list item", "    - open_date (date YYYY-MM-DD, required)"},
		{"enum", "one of active, closed, overdue, sold, restructured"},
		{"cross field", "not before open_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(spec, tt.want) {
				t.Errorf("spec missing %q:\n%s", tt.want, spec)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	c := newCatalog(t, nil)
	text := strings.Repeat("Кредит ", 100)

	prompt := c.Compose(formats.Equifax, text, "", 20)

	if !strings.Contains(prompt, c.Instructions(formats.Equifax)) {
		t.Error("prompt missing layout instructions")
	}
	if !strings.Contains(prompt, c.Spec(formats.Equifax)) {
		t.Error("prompt missing output spec")
	}
	idx := strings.Index(prompt, "Report text:\n\n")
	if idx < 0 {
		t.Fatal("prompt missing report text marker")
	}
	body := prompt[idx+len("Report text:\n\n"):]
	if got := len([]rune(body)); got != 20 {
		t.Errorf("report text runes = %d, want 20", got)
	}
}

func TestComposeTables(t *testing.T) {
	c := newCatalog(t, nil)
	tables := "[page 2]\nКредитор | Остаток\nСбербанк | 150 000,00\n"

	tests := []struct {
		name     string
		text     string
		maxChars int
	}{
		{"unbounded", "Кредитный отчет", 0},
		{"text over budget", strings.Repeat("Кредит ", 200), 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := c.Compose(formats.NBKI, tt.text, tables, tt.maxChars)

			idx := strings.Index(prompt, "Report text:\n\n")
			if idx < 0 {
				t.Fatal("prompt missing report text marker")
			}
			body := prompt[idx+len("Report text:\n\n"):]
			if !strings.Contains(body, "\n\nTables:\n\n"+tables) {
				t.Errorf("prompt missing rendered tables:\n%s", body)
			}
			if tt.maxChars > 0 {
				body = strings.Replace(body, "\n\nTables:\n\n", "", 1)
				if got := len([]rune(body)); got > tt.maxChars {
					t.Errorf("got %d runes of report content, want at most %d", got, tt.maxChars)
				}
			}
		})
	}
}

func TestInstructionOverrides(t *testing.T) {
	o := &formats.Overrides{Formats: map[formats.Format]formats.FormatOverride{
		formats.Kiwi: {Instructions: "Custom Kiwi instructions."},
	}}
	c := newCatalog(t, o)

	if got := c.Instructions(formats.Kiwi); got != "Custom Kiwi instructions." {
		t.Errorf("Instructions(kiwi) = %q, want override", got)
	}
	if c.Instructions(formats.OKB) == "" {
		t.Error("non-overridden layouts keep built-in instructions")
	}
}
